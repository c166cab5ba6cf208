package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoURL is returned when there is nothing to open
var ErrNoURL = errors.New("no url to open")

// Launcher opens entry pages and trailers in an external browser
type Launcher struct {
	command string   // configured browser command, empty for system default
	args    []string // additional arguments for the browser
	logger  *slog.Logger

	// start runs a command without waiting for it
	start func(name string, args ...string) error
}

// NewLauncher creates a new Launcher. An empty command uses the system
// default handler (open/xdg-open/start).
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		args:    args,
		logger:  logger,
		start:   startCommand,
	}
}

func startCommand(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	return exec.Command(name, args...).Start() // Start async, don't wait
}

// Open opens rawURL. Only http and https URLs are accepted.
func (l *Launcher) Open(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q: not a web url", rawURL)
	}

	// Tier 1: User configured a specific browser
	if l.command != "" {
		args := append(append([]string{}, l.args...), rawURL)
		l.logger.Info("launching browser", "command", l.command, "url", rawURL)
		return l.start(l.command, args...)
	}

	// Tier 2: Fall back to system default
	name, args := defaultOpener(runtime.GOOS)
	l.logger.Info("launching with system default", "os", runtime.GOOS, "url", rawURL)
	return l.start(name, append(args, rawURL)...)
}

// defaultOpener returns the system URL handler for goos
func defaultOpener(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "cmd", []string{"/c", "start", ""}
	default:
		// Linux and other Unix-like systems
		return "xdg-open", nil
	}
}
