// Program shell is an interactive REPL client for the job server.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kkloberdanz/jobrun/httpclient"
	"github.com/kkloberdanz/jobrun/job"
	"github.com/kkloberdanz/jobrun/logging"
)

func main() {
	logging.Init()

	rootCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive REPL client for the job server",
		RunE:  runShell,
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

const help = `commands:
  connect <address>          connect to a job server
  ls [id]                    list job ids, or files for a job
  submit <script-file>       submit a job whose script is the named file
  delete <id>                delete a job
  wait <id>                  block until a job exits
  get <name> --id <id>       download a job file
  put <name> --id <id>       upload a local file to a job
  shutdown                   clear all jobs and stop the server
  help                       show this message
  quit                       exit the shell
`

func runShell(cmd *cobra.Command, args []string) error {
	client := httpclient.New("")
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Printf("connected to %s\n", client.ServerAddress())
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if quit := dispatch(&client, line); quit {
				break
			}
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

// dispatch runs one REPL line and reports whether the shell should exit.
func dispatch(client **httpclient.Client, line string) bool {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "connect":
		if len(rest) != 1 {
			fmt.Println("usage: connect <address>")
			return false
		}
		*client = httpclient.New(rest[0])
		fmt.Printf("connected to %s\n", (*client).ServerAddress())

	case "ls":
		if len(rest) == 0 {
			ids, err := (*client).ListJobs()
			report(err)
			if err == nil {
				fmt.Println(ids)
			}
			return false
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Println("ls: invalid job id:", rest[0])
			return false
		}
		paths, err := (*client).ListJobFiles(id)
		report(err)
		if err == nil {
			fmt.Println(paths)
		}

	case "submit":
		if len(rest) != 1 {
			fmt.Println("usage: submit <script-file>")
			return false
		}
		script, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Println("submit: failed to read script:", err)
			return false
		}
		id, err := (*client).CreateJob(job.Spec{Script: string(script)})
		report(err)
		if err == nil {
			fmt.Println("job", id)
		}

	case "delete":
		if len(rest) != 1 {
			fmt.Println("usage: delete <id>")
			return false
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Println("delete: invalid job id:", rest[0])
			return false
		}
		report((*client).DeleteJob(id))

	case "wait":
		if len(rest) != 1 {
			fmt.Println("usage: wait <id>")
			return false
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Println("wait: invalid job id:", rest[0])
			return false
		}
		report((*client).WaitJob(id))

	case "get":
		name, id, ok := parseFileArgs(rest)
		if !ok {
			fmt.Println("usage: get <name> --id <id>")
			return false
		}
		report((*client).GetJobFile(id, name))

	case "put":
		name, id, ok := parseFileArgs(rest)
		if !ok {
			fmt.Println("usage: put <name> --id <id>")
			return false
		}
		data, err := os.ReadFile(name)
		if err != nil {
			fmt.Println("put: failed to read local file:", err)
			return false
		}
		report((*client).PutJobFile(id, name, data))

	case "shutdown":
		report((*client).Shutdown())

	case "help":
		fmt.Print(help)

	case "quit":
		return true

	default:
		fmt.Printf("unknown command %q; type help for a list\n", cmd)
	}
	return false
}

// parseFileArgs parses "<name> --id <id>" into its two components.
func parseFileArgs(rest []string) (name string, id int, ok bool) {
	if len(rest) != 3 || rest[1] != "--id" {
		return "", 0, false
	}
	id, err := strconv.Atoi(rest[2])
	if err != nil {
		return "", 0, false
	}
	return rest[0], id, true
}

func report(err error) {
	if err != nil {
		fmt.Println("error:", err)
	}
}
