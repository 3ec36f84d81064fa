// Package cli parses command line arguments for the viva binary.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandStart   Command = "start"
	CommandResume  Command = "resume"
	CommandStop    Command = "stop"
	CommandEnd     Command = "end"
	CommandStatus  Command = "status"
	CommandDiscard Command = "discard"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandStart:   {},
	CommandResume:  {},
	CommandStop:    {},
	CommandEnd:     {},
	CommandStatus:  {},
	CommandDiscard: {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command     Command
	Participant string
	ConfigPath  string
	ShowHelp    bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest, err := parsed.takeFlags(args[i+1:])
			if err != nil {
				return Parsed{}, err
			}
			if cmd == CommandStart {
				if len(rest) != 1 {
					return Parsed{}, errors.New("start requires exactly one participant email")
				}
				parsed.Participant = rest[0]
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

// takeFlags strips known flags from args, wherever they appear, and
// returns the remaining positional arguments.
func (p *Parsed) takeFlags(args []string) ([]string, error) {
	var positional []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-h", "--help":
			p.ShowHelp = true
		case "--config":
			i++
			if i >= len(args) {
				return nil, errors.New("--config requires a path")
			}
			p.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}
	return positional, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  start EMAIL   Begin a new interview session for a Gmail participant
  resume        Continue an interrupted session
  stop          Finish answering the current question now
  end           Finish the whole session now
  status        Print current session state
  discard       Delete the stored session snapshot
  devices       List available input devices
  doctor        Run configuration and environment checks
  version       Print version information
  help          Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/viva/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
