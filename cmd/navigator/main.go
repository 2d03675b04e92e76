package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/navigator/internal/browser"
	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/forms"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/navigator/internal/logging"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

type summary struct {
	URL     string              `json:"url"`
	Status  int                 `json:"status,omitempty"`
	Type    string              `json:"content_type,omitempty"`
	Title   string              `json:"title,omitempty"`
	Text    string              `json:"text,omitempty"`
	Links   []linkSummary       `json:"links,omitempty"`
	Forms   []formSummary       `json:"forms,omitempty"`
	History int                 `json:"history"`
	Error   string              `json:"error,omitempty"`
	Metrics monitoring.Snapshot `json:"metrics"`
}

type linkSummary struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
	Tag  string `json:"tag"`
}

type formSummary struct {
	Name     string   `json:"name,omitempty"`
	Method   string   `json:"method"`
	Action   string   `json:"action"`
	Controls []string `json:"controls"`
}

func main() {
	configPath := flag.String("config", "", "YAML or TOML configuration file")
	follow := flag.String("follow", "", "Follow the first link with this text")
	withText := flag.Bool("text", false, "Include the page text")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: navigator [flags] URL")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := browser.New(
		browser.WithConfig(cfg),
		browser.WithLogger(logger),
		browser.WithTracer(tracing.New(logger)))
	if err != nil {
		logger.Fatal("Failed to create browser", zap.Error(err))
	}
	defer b.Close()

	out := run(ctx, b, flag.Arg(0), *follow, *withText)
	data, err := sonic.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode summary", zap.Error(err))
	}
	fmt.Println(string(data))
	if out.Error != "" {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(ctx context.Context, b *browser.Browser, rawURL, follow string, withText bool) summary {
	resp, err := b.Open(ctx, rawURL)
	if err == nil && follow != "" {
		resp, err = b.FollowLink(ctx, browser.LinkQuery{Text: follow})
	}

	out := summary{History: b.History()}
	out.URL, _ = b.URL()
	if resp != nil {
		out.Status = resp.StatusCode
		out.Type = resp.ContentType()
	}
	if err != nil {
		out.Error = err.Error()
		var httpErr *pipeline.HTTPError
		if !errors.As(err, &httpErr) {
			out.Metrics = b.Metrics().Snapshot()
			return out
		}
	}

	if page, perr := b.Page(); perr == nil {
		out.Title = page.Title
		if withText {
			out.Text = page.Text()
		}
		out.Links = summarizeLinks(page.Links)
		out.Forms = summarizeForms(page.Forms)
	}
	out.Metrics = b.Metrics().Snapshot()
	return out
}

func summarizeLinks(links []*forms.Link) []linkSummary {
	out := make([]linkSummary, 0, len(links))
	for _, l := range links {
		target := l.URL
		if u, err := l.Absolute(); err == nil {
			target = u.String()
		}
		out = append(out, linkSummary{URL: target, Text: l.Text, Tag: l.Tag})
	}
	return out
}

func summarizeForms(all []*forms.Form) []formSummary {
	out := make([]formSummary, 0, len(all))
	for _, f := range all {
		s := formSummary{Name: f.Name, Method: f.Method}
		if f.Action != nil {
			s.Action = f.Action.String()
		}
		for _, c := range f.Controls {
			if c.Name != "" {
				s.Controls = append(s.Controls, c.Type+":"+c.Name)
			}
		}
		out = append(out, s)
	}
	return out
}
