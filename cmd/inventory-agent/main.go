package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/atvirokodosprendimai/hostledger/internal/messaging"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "inventory-agent",
		Usage: "Push client inventory reports to the inventory server over NATS.",
		Commands: []*cli.Command{
			{
				Name:      "push",
				Usage:     "Publish a JSON report file",
				ArgsUsage: "<report.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "nats-url", Value: nats.DefaultURL, Usage: "NATS server URL"},
					&cli.StringFlag{Name: "mode", Value: "create", Usage: "Report kind: create (list of client trees) or update (one client patch)"},
					&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "How long to wait for the server's reply"},
				},
				Action: runPush,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func runPush(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("expected exactly one report file")
	}
	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	subject, err := subjectForMode(cmd.String("mode"), data)
	if err != nil {
		return err
	}

	nc, err := messaging.Connect(cmd.String("nats-url"), "inventory-agent", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	reqCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	msg, err := nc.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return fmt.Errorf("report was not acknowledged: %w", err)
	}

	var reply messaging.Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("unreadable reply: %w", err)
	}
	if reply.Error != "" {
		return fmt.Errorf("server rejected report (%s): %s", reply.Error, reply.Message)
	}
	log.Println(reply.Message)
	return nil
}

// subjectForMode checks the file parses as the report kind before sending it.
func subjectForMode(mode string, data []byte) (string, error) {
	switch mode {
	case "create":
		var report messaging.CreateReport
		if err := json.Unmarshal(data, &report); err != nil {
			return "", fmt.Errorf("report is not a list of client trees: %w", err)
		}
		return messaging.SubjectReportCreate, nil
	case "update":
		var report messaging.UpdateReport
		if err := json.Unmarshal(data, &report); err != nil {
			return "", fmt.Errorf("report is not a client patch: %w", err)
		}
		if report.Client == "" {
			return "", fmt.Errorf("update report needs a client name")
		}
		return messaging.SubjectReportUpdate, nil
	default:
		return "", fmt.Errorf("unknown mode %q", mode)
	}
}
