package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"

	"github.com/majcheradam/BetterVCardTools/internal/config"
	"github.com/majcheradam/BetterVCardTools/internal/engine"
	"github.com/majcheradam/BetterVCardTools/internal/server"
	"github.com/majcheradam/BetterVCardTools/internal/vcard"
)

// main delegates execution to runMain to ensure that deferred function calls
// are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain() int {
	// Load .env first, but don't error if it doesn't exist.
	_ = godotenv.Load(config.EnvFileName)

	// Root context cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Debug(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// newApp assembles the CLI command tree.
func newApp() *cli.App {
	cli.VersionPrinter = func(*cli.Context) {
		fmt.Printf(config.MsgVersionOutput,
			config.AppName,
			config.Version,
			config.Commit,
			config.Date,
			runtime.GOOS,
			runtime.GOARCH,
		)
	}

	return &cli.App{
		Name:    config.AppName,
		Usage:   config.UsageApp,
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: config.FlagDebug, Usage: config.FlagDescDebug},
		},
		Before: func(c *cli.Context) error {
			setupLogging(c.Bool(config.FlagDebug))
			logStartupInfo()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			convertCommand(),
			qrCommand(),
			loginCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  config.CmdServe,
		Usage: config.UsageServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.FlagPort,
				Value:   config.DefaultPort,
				Usage:   config.FlagDescPort,
				EnvVars: []string{config.EnvPort},
			},
		},
		Action: func(c *cli.Context) error {
			srv := server.NewServer(c.String(config.FlagPort), engine.NewConverter())
			return srv.Start(c.Context)
		},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      config.CmdConvert,
		Usage:     config.UsageConvert,
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: config.FlagURL, Usage: config.FlagDescURL},
			&cli.StringFlag{Name: config.FlagDAV, Usage: config.FlagDescDAV, EnvVars: []string{config.EnvDAVURL}},
			&cli.StringFlag{Name: config.FlagUser, Usage: config.FlagDescUser, EnvVars: []string{config.EnvDAVUser}},
			&cli.StringFlag{Name: config.FlagPass, Usage: config.FlagDescPass, EnvVars: []string{config.EnvDAVPass}},
			&cli.StringFlag{Name: config.FlagFormat, Value: config.FormatVCF, Usage: config.FlagDescFormat},
			&cli.StringFlag{Name: config.FlagOutput, Usage: config.FlagDescOutput},
		},
		Action: runConvert,
	}
}

func qrCommand() *cli.Command {
	return &cli.Command{
		Name:      config.CmdQR,
		Usage:     config.UsageQR,
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: config.FlagSize, Value: config.DefaultQRSize, Usage: config.FlagDescSize},
			&cli.StringFlag{Name: config.FlagOutput, Usage: config.FlagDescOutput},
		},
		Action: runQR,
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  config.CmdLogin,
		Usage: config.UsageLogin,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: config.FlagUser, Usage: config.FlagDescUser},
		},
		Action: runLogin,
	}
}

// runConvert gathers contacts from every configured source and renders them
// in the requested format.
func runConvert(c *cli.Context) error {
	format := c.String(config.FlagFormat)
	if format != config.FormatVCF && format != config.FormatICS {
		return fmt.Errorf("%s: %q", config.ErrFormatUnsupport, format)
	}
	slog.Debug(config.MsgConvertStart,
		config.LogKeyComponent, config.CompCLI,
		config.LogKeyFormat, format,
	)

	conv := engine.NewConverter()

	contacts, err := collectContacts(c, conv)
	if err != nil {
		return err
	}

	var payload []byte
	if format == config.FormatICS {
		payload, err = conv.BirthdayCalendar(contacts, "")
		if err != nil {
			return err
		}
	} else {
		payload = []byte(conv.SerializeContacts(contacts))
	}

	return writeOutput(c.String(config.FlagOutput), payload)
}

func runQR(c *cli.Context) error {
	out := c.String(config.FlagOutput)
	if out == "" {
		return errors.New(config.ErrOutputRequired)
	}
	if c.NArg() == 0 {
		return errors.New(config.ErrFilePathEmpty)
	}

	conv := engine.NewConverter()
	res, err := conv.ConvertSource(c.Context, engine.SourceConfig{
		Mode: config.SourceModeFile,
		Path: c.Args().First(),
	})
	if err != nil {
		return err
	}
	if len(res.Contacts) == 0 {
		return errors.New(config.ErrNoContacts)
	}

	// QR codes hold one contact, so only the first card is encoded.
	img, err := vcard.QRCode(conv.SerializeContacts(res.Contacts[:1]), c.Int(config.FlagSize))
	if err != nil {
		return err
	}
	return writeOutput(out, img)
}

func runLogin(c *cli.Context) error {
	reader := bufio.NewReader(os.Stdin)

	user := c.String(config.FlagUser)
	if user == "" {
		user = prompt(reader, config.PromptUsername)
	}
	if user == "" {
		return errors.New(config.ErrUserRequired)
	}

	pass := prompt(reader, config.PromptPassword)

	if err := keyring.Set(config.KeyringService, user, pass); err != nil {
		return fmt.Errorf("%s: %w", config.ErrKeyring, err)
	}

	slog.Info(config.MsgKeyringStored,
		config.LogKeyComponent, config.CompCLI,
		config.LogKeyUser, user,
	)
	return nil
}

// collectContacts resolves the input sources and concatenates their contacts
// in order. An empty total is an error so the CLI never emits empty files.
func collectContacts(c *cli.Context, conv *engine.Converter) ([]vcard.Contact, error) {
	sources, err := resolveSources(c)
	if err != nil {
		return nil, err
	}

	var contacts []vcard.Contact
	for _, src := range sources {
		res, err := conv.ConvertSource(c.Context, src)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, res.Contacts...)
	}
	if len(contacts) == 0 {
		return nil, errors.New(config.ErrNoContacts)
	}
	return contacts, nil
}

// resolveSources maps flags and positional arguments to source configs.
// A DAV collection wins over a plain URL, which wins over file arguments.
func resolveSources(c *cli.Context) ([]engine.SourceConfig, error) {
	user := c.String(config.FlagUser)
	pass := c.String(config.FlagPass)

	if dav := c.String(config.FlagDAV); dav != "" {
		return []engine.SourceConfig{{Mode: config.SourceModeDAV, URL: dav, Username: user, Password: pass}}, nil
	}
	if url := c.String(config.FlagURL); url != "" {
		return []engine.SourceConfig{{Mode: config.SourceModeURL, URL: url, Username: user, Password: pass}}, nil
	}
	if c.NArg() == 0 {
		return nil, errors.New(config.ErrFilePathEmpty)
	}

	sources := make([]engine.SourceConfig, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		sources = append(sources, engine.SourceConfig{Mode: config.SourceModeFile, Path: path})
	}
	return sources, nil
}

// writeOutput sends the payload to the requested file, or stdout when no
// file was given.
func writeOutput(path string, payload []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(payload)
		return err
	}

	if err := os.WriteFile(path, payload, config.FilePermOutput); err != nil {
		return err
	}
	slog.Info(config.MsgOutputWritten,
		config.LogKeyComponent, config.CompCLI,
		config.LogKeyFile, path,
		config.LogKeySizeBytes, len(payload),
	)
	return nil
}

// prompt reads one line from stdin after printing the label.
func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// setupLogging configures the default slog logger. Logs go to stderr so that
// converted output can stream to stdout untouched.
func setupLogging(debugMode bool) {
	level := levelFromEnv(os.Getenv(config.EnvLogLevel))
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
}

func levelFromEnv(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Debug(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}
