package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nomis52/signupdesk/buildinfo"
	"github.com/nomis52/signupdesk/clients/activityservice"
	"github.com/nomis52/signupdesk/config"
	"github.com/nomis52/signupdesk/eventloop"
	"github.com/nomis52/signupdesk/logging"
	"github.com/nomis52/signupdesk/messages"
	"github.com/nomis52/signupdesk/metrics"
	"github.com/nomis52/signupdesk/render"
	"github.com/nomis52/signupdesk/session"
)

const passwordEnv = "SIGNUPDESK_TEACHER_PASSWORD"

// errShown means the command finished but the user was shown an error.
var errShown = errors.New("command reported an error")

type Args struct {
	ConfigPath  string
	Command     string
	CommandArgs []string
}

func main() {
	args := parseArgs()
	if err := run(context.Background(), args, os.Stdout); err != nil {
		if !errors.Is(err, errShown) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args Args, out io.Writer) error {
	switch args.Command {
	case "version":
		fmt.Fprintln(out, buildinfo.Get())
		return nil
	case "list", "signup", "unregister", "login", "validate":
	case "":
		flag.Usage()
		return fmt.Errorf("a command is required")
	default:
		return fmt.Errorf("unknown command %q", args.Command)
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if args.Command == "validate" {
		fmt.Fprintf(out, "Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	props := buildinfo.Get()
	logger.Debug("signupdesk started",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"command", args.Command,
	)

	registry, push, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	catalog, err := messages.New(cfg.UI.Locale, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	client, err := activityservice.New(cfg.Service.URL,
		activityservice.WithLogger(logger.Logger),
		activityservice.WithTimeout(cfg.Service.Timeout),
		activityservice.WithMetricsRegistry(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	loopCtx, stop := context.WithCancel(context.Background())
	defer stop()
	loop := eventloop.New(eventloop.WithLogger(logger.Logger))
	go loop.Run(loopCtx)

	sess, err := session.New(client, loop,
		session.WithLogger(logger.Logger),
		session.WithTranslator(catalog),
		session.WithMessageTimeout(cfg.UI.MessageTimeout),
		session.WithLoginHideDelay(cfg.UI.LoginHideDelay),
		session.WithMetricsRegistry(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	cmdErr := execute(ctx, sess, catalog, args, out)

	if push != nil {
		if err := push.Push(ctx); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}
	return cmdErr
}

func newRegistry(cfg config.Config) (metrics.Registry, *metrics.PushRegistry, error) {
	if cfg.Monitoring.VictoriaMetricsURL == "" {
		return metrics.Nop(), nil, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	push := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.VictoriaMetricsURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
	})
	return push, push, nil
}

// execute runs one command against a fresh session and prints what the
// page would show afterwards.
func execute(ctx context.Context, sess *session.ActivityClient, tr render.Translator, args Args, out io.Writer) error {
	// Every command starts from a loaded page.
	sess.RefreshRoster(ctx)

	switch args.Command {
	case "list":
		return printState(sess, tr, out, false)

	case "signup":
		fs := flag.NewFlagSet("signup", flag.ContinueOnError)
		activity := fs.String("activity", "", "Activity to sign up for")
		email := fs.String("email", "", "Student email")
		if err := fs.Parse(args.CommandArgs); err != nil {
			return err
		}
		if err := sess.SetSignupEmail(*email); err != nil {
			return err
		}
		if err := sess.SelectActivity(*activity); err != nil {
			return err
		}
		if err := sess.SubmitSignup(ctx); errors.Is(err, session.ErrInvalidForm) {
			return err
		}
		return printState(sess, tr, out, false)

	case "unregister":
		fs := flag.NewFlagSet("unregister", flag.ContinueOnError)
		activity := fs.String("activity", "", "Activity to leave")
		email := fs.String("email", "", "Student email")
		if err := fs.Parse(args.CommandArgs); err != nil {
			return err
		}
		p, ok := sess.Participant(*activity, *email)
		if !ok {
			return fmt.Errorf("%s is not listed under %q", *email, *activity)
		}
		p.Remove(ctx)
		return printState(sess, tr, out, false)

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		username := fs.String("username", "", "Teacher username")
		password := fs.String("password", "", "Teacher password (defaults to $"+passwordEnv+")")
		if err := fs.Parse(args.CommandArgs); err != nil {
			return err
		}
		if *password == "" {
			*password = os.Getenv(passwordEnv)
		}
		if err := sess.OpenLoginModal(); err != nil {
			return err
		}
		sess.VerifyTeacherCredentials(ctx, *username, *password)
		return printState(sess, tr, out, true)
	}
	return nil
}

// printState renders the session and returns errShown when the visible
// message, or the roster itself, reports a failure.
func printState(sess *session.ActivityClient, tr render.Translator, out io.Writer, modal bool) error {
	snap, err := sess.Snapshot()
	if err != nil {
		return err
	}

	msg := snap.Message
	if modal {
		msg = snap.Modal.Message
		fmt.Fprintln(out, render.MessageLine(msg))
	} else if err := render.Text(out, snap, tr); err != nil {
		return err
	}

	if msg.Visible && msg.Severity == session.SeverityError {
		return errShown
	}
	if !modal && snap.Roster.Failure != "" {
		return errShown
	}
	return nil
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [command options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nActivity signup client\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                                   Show all activities\n")
		fmt.Fprintf(os.Stderr, "  signup -activity NAME -email EMAIL     Sign a student up\n")
		fmt.Fprintf(os.Stderr, "  unregister -activity NAME -email EMAIL Remove a student\n")
		fmt.Fprintf(os.Stderr, "  login -username USER [-password PASS]  Check teacher credentials\n")
		fmt.Fprintf(os.Stderr, "  validate                               Validate configuration\n")
		fmt.Fprintf(os.Stderr, "  version                                Show version information\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml signup -activity \"Chess Club\" -email michael@mergington.edu\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	args := Args{ConfigPath: path}
	if rest := flag.Args(); len(rest) > 0 {
		args.Command = rest[0]
		args.CommandArgs = rest[1:]
	}
	return args
}
