package runner

import (
	"fmt"
	"os"
	"sync"

	"github.com/maxvaer/keyprobe/internal/scanner"
	"golang.org/x/term"
)

// startStdinToggle starts a goroutine that reads single keypresses from
// stdin and toggles the pauser on Enter or Space. The returned restore
// function puts the terminal back and may be called more than once. If stdin
// is not a terminal, it returns a nil pauser and a no-op restore.
func startStdinToggle(quiet bool) (pauser *scanner.Pauser, cleanup func()) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		if !quiet {
			fmt.Fprintf(os.Stderr, "[!] Could not enable raw terminal: %v\n", err)
		}
		return nil, func() {}
	}

	// MakeRaw disables OPOST, which stops \n to \r\n translation. Only raw
	// input is needed, so turn it back on.
	fixOutputProcessing(fd)

	pauser = scanner.NewPauser()

	var once sync.Once
	cleanup = func() {
		once.Do(func() { _ = term.Restore(fd, oldState) })
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			key := buf[0]

			// Ctrl+C (0x03): restore terminal and re-send SIGINT so the
			// existing signal handler chain fires normally.
			if key == 0x03 {
				cleanup()
				sendInterrupt()
				return
			}

			// Enter (CR or LF) or Space: toggle pause.
			if key == '\r' || key == '\n' || key == ' ' {
				nowPaused := pauser.Toggle()
				if !quiet {
					if nowPaused {
						fmt.Fprintf(os.Stderr, "\r\033[K[*] Probing PAUSED, press Enter or Space to resume\n")
					} else {
						fmt.Fprintf(os.Stderr, "\r\033[K[*] Probing RESUMED\n")
					}
				}
			}
		}
	}()

	return pauser, cleanup
}
