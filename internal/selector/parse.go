package selector

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const Usage = "redoxfs [--uuid] [disk or uuid] [mountpoint]"

// UsageHint follows Usage wherever it is printed.
const UsageHint = "put -- before a disk path that starts with '-', e.g. redoxfs -- -disk.img /mnt"

// ErrHelp is returned by Parse when -h or --help was given.
var ErrHelp = pflag.ErrHelp

// UsageError reports malformed or missing arguments. It never leads to a daemon spawn.
type UsageError struct {
	Msg string
	Err error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func usageErrorf(err error, format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// Invocation is the parsed command line.
type Invocation struct {
	Selector   DiskSelector
	Mountpoint string
	ConfigPath string

	// Extra holds positionals after the mountpoint. They are not validated.
	Extra []string
}

// Parse turns command line tokens (without the program name) into an Invocation.
// Flags must come before the positionals; "--" ends flag parsing.
func Parse(args []string) (*Invocation, error) {
	var (
		byUUID     bool
		configPath string
	)

	flagSet := pflag.NewFlagSet("redoxfs", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SetInterspersed(false)
	flagSet.BoolVar(&byUUID, "uuid", false, "select the disk by filesystem uuid")
	flagSet.StringVar(&configPath, "config", "", "path to the config file")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, usageErrorf(err, "invalid arguments")
	}

	if help, _ := flagSet.GetBool("help"); help {
		return nil, ErrHelp
	}

	positional := flagSet.Args()

	inv := &Invocation{ConfigPath: configPath}

	if byUUID {
		if len(positional) == 0 {
			return nil, usageErrorf(nil, "no uuid provided")
		}
		id, err := parseUUID(positional[0])
		if err != nil {
			return nil, usageErrorf(err, "invalid uuid '%s'", positional[0])
		}
		inv.Selector = ByUUID(id)
	} else {
		if len(positional) == 0 {
			return nil, usageErrorf(nil, "no disk provided")
		}
		inv.Selector = ByPath(positional[0])
	}

	if len(positional) < 2 {
		return nil, usageErrorf(nil, "no mountpoint provided")
	}
	inv.Mountpoint = positional[1]
	inv.Extra = positional[2:]

	return inv, nil
}

// parseUUID only accepts the 36 character hyphenated form. uuid.Parse would
// also take urn and braced variants.
func parseUUID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("expected 36 characters, got %d", len(s))
	}
	return uuid.Parse(s)
}
