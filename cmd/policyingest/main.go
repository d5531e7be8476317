// Command policyingest runs the ingestion pipeline on a file, a URL or text
// and prints the {content, source} JSON.
//
// Usage:
//
//	policyingest file policy.pdf
//	policyingest url https://example.com/ai-policy
//	echo "..." | policyingest text -
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/config"
	"github.com/hazyhaar/policyvet/ingest"
	"github.com/hazyhaar/policyvet/kit"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "policyingest:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "policyingest",
		Usage: "Extract the plain text of a policy document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.IntFlag{
				Name:  "max-upload-mb",
				Usage: "Size ceiling of files and fetched documents, in MiB",
				Value: 5,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "URL fetch timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: "Also render HTML sources as Markdown",
			},
			&cli.BoolFlag{
				Name:  "block-private",
				Usage: "Refuse URLs resolving to private or loopback addresses",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Extract text from a local .pdf, .docx, .doc, .txt or .md file",
				ArgsUsage: "<path>",
				Action:    fileCommand,
			},
			{
				Name:      "url",
				Usage:     "Fetch a URL and extract its text",
				ArgsUsage: "<url>",
				Action:    urlCommand,
			},
			{
				Name:      "text",
				Usage:     "Pass text through (\"-\" reads standard input)",
				ArgsUsage: "<text|->",
				Action:    textCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := config.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
	return nil
}

func newService(c *cli.Context) (*ingest.Service, error) {
	mb := c.Int("max-upload-mb")
	if mb <= 0 {
		return nil, fmt.Errorf("--max-upload-mb must be > 0")
	}
	return ingest.New(ingest.Config{
		MaxUploadBytes:       int64(mb) << 20,
		FetchTimeout:         c.Duration("timeout"),
		Markdown:             c.Bool("markdown"),
		BlockPrivateNetworks: c.Bool("block-private"),
		Logger:               slog.Default(),
	}), nil
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one argument, got %d", c.Command.Name, c.NArg())
	}
	return c.Args().First(), nil
}

func fileCommand(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	// Read one byte past the ceiling so oversize files are reported as such.
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(c.Int("max-upload-mb"))<<20+1))
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	return ingestAndPrint(c, ingest.Upload(filepath.Base(path), contentType, data))
}

func urlCommand(c *cli.Context) error {
	u, err := oneArg(c)
	if err != nil {
		return err
	}
	return ingestAndPrint(c, ingest.URL(u))
}

func textCommand(c *cli.Context) error {
	text, err := oneArg(c)
	if err != nil {
		return err
	}
	if text == "-" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return err
		}
		text = string(b)
	}
	return ingestAndPrint(c, ingest.Text(text))
}

type errorOutput struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

func ingestAndPrint(c *cli.Context, req ingest.Request) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = kit.WithTransport(ctx, "cli")

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	res, err := svc.Ingest(ctx, req)
	if err != nil {
		msg := apperr.Message(err, err.Error())
		enc.Encode(errorOutput{Error: msg, Class: apperr.Class(err)})
		return errors.New(strings.TrimSpace(msg))
	}
	return enc.Encode(res)
}
