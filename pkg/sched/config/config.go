// Package config parses the emulator's flat key/value configuration file
// (spec.md §6): one whitespace-separated key/value pair per line, values
// optionally quoted (e.g. `scheduler "fcfs"`).
//
// Tokenizing is grounded on the teacher's Configure handler
// (pkg/inference/scheduling/scheduler.go), which shellwords-parses
// RawRuntimeFlags so quoted values split the same way a shell would.
package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/schederr"
	"github.com/csopesy/schedcore/pkg/sched/scheduling"
)

// Config is the validated, typed form of the configuration file.
type Config struct {
	NumCores        int
	Policy          scheduling.Policy
	TimeSlice       int
	BatchFreq       int
	MinInstructions int
	MaxInstructions int
	DelayPerExec    time.Duration
	MaxOverallMem   uint64
	MemPerFrame     uint64
	MinMemPerProc   uint64
	MaxMemPerProc   uint64
}

// requiredKeys are the configuration keys spec.md §6 names; a missing key
// is a ConfigError.
var requiredKeys = []string{
	"num-cpu", "scheduler", "quantum-cycles", "batch-process-freq",
	"min-ins", "max-ins", "delay-per-exec",
	"max-overall-mem", "mem-per-frame", "min-mem-per-proc", "max-mem-per-proc",
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, schederr.Wrap(schederr.ConfigError, "open config file", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a configuration file from r.
func Parse(r io.Reader) (Config, error) {
	raw := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := shellwords.Parse(line)
		if err != nil {
			return Config{}, schederr.Wrap(schederr.ConfigError, "tokenize config line: "+line, err)
		}
		if len(fields) < 2 {
			return Config{}, schederr.New(schederr.ConfigError, "malformed config line: "+line)
		}
		raw[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return Config{}, schederr.Wrap(schederr.ConfigError, "read config file", err)
	}

	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return Config{}, schederr.New(schederr.ConfigError, "missing required key: "+key)
		}
	}

	var cfg Config
	var err error

	if cfg.NumCores, err = parseInt(raw, "num-cpu"); err != nil {
		return Config{}, err
	}
	if cfg.NumCores < 1 {
		return Config{}, schederr.New(schederr.ConfigError, "num-cpu must be at least 1")
	}

	switch strings.ToLower(raw["scheduler"]) {
	case "fcfs":
		cfg.Policy = scheduling.FCFS
	case "rr":
		cfg.Policy = scheduling.RR
	default:
		return Config{}, schederr.New(schederr.ConfigError, `scheduler must be "fcfs" or "rr"`)
	}

	if cfg.TimeSlice, err = parseInt(raw, "quantum-cycles"); err != nil {
		return Config{}, err
	}
	if cfg.Policy == scheduling.RR && cfg.TimeSlice < 1 {
		return Config{}, schederr.New(schederr.ConfigError, "quantum-cycles must be at least 1 for rr")
	}

	if cfg.BatchFreq, err = parseInt(raw, "batch-process-freq"); err != nil {
		return Config{}, err
	}
	if cfg.MinInstructions, err = parseInt(raw, "min-ins"); err != nil {
		return Config{}, err
	}
	if cfg.MaxInstructions, err = parseInt(raw, "max-ins"); err != nil {
		return Config{}, err
	}
	if cfg.MaxInstructions < cfg.MinInstructions {
		return Config{}, schederr.New(schederr.ConfigError, "max-ins must be >= min-ins")
	}

	delayMS, err := parseInt(raw, "delay-per-exec")
	if err != nil {
		return Config{}, err
	}
	cfg.DelayPerExec = time.Duration(delayMS) * time.Millisecond

	if cfg.MaxOverallMem, err = parseUint(raw, "max-overall-mem"); err != nil {
		return Config{}, err
	}
	if cfg.MemPerFrame, err = parseUint(raw, "mem-per-frame"); err != nil {
		return Config{}, err
	}
	if cfg.MinMemPerProc, err = parseUint(raw, "min-mem-per-proc"); err != nil {
		return Config{}, err
	}
	if cfg.MaxMemPerProc, err = parseUint(raw, "max-mem-per-proc"); err != nil {
		return Config{}, err
	}
	if !isPowerOfTwo(cfg.MinMemPerProc) || !isPowerOfTwo(cfg.MaxMemPerProc) {
		return Config{}, schederr.New(schederr.ConfigError, "min/max-mem-per-proc must be powers of two")
	}
	if cfg.MaxMemPerProc < cfg.MinMemPerProc {
		return Config{}, schederr.New(schederr.ConfigError, "max-mem-per-proc must be >= min-mem-per-proc")
	}
	if cfg.MemPerFrame == 0 || cfg.MaxOverallMem%cfg.MemPerFrame != 0 {
		return Config{}, schederr.New(schederr.ConfigError, "max-overall-mem must be a multiple of mem-per-frame")
	}

	return cfg, nil
}

// MemoryConfig projects the parsed Config into a memory.Config.
func (c Config) MemoryConfig() memory.Config {
	return memory.Config{
		MaxMemory:     c.MaxOverallMem,
		FrameSize:     c.MemPerFrame,
		MinMemPerProc: c.MinMemPerProc,
		MaxMemPerProc: c.MaxMemPerProc,
	}
}

func parseInt(raw map[string]string, key string) (int, error) {
	n, err := strconv.Atoi(raw[key])
	if err != nil {
		return 0, schederr.Wrap(schederr.ConfigError, "parse "+key, err)
	}
	return n, nil
}

func parseUint(raw map[string]string, key string) (uint64, error) {
	n, err := strconv.ParseUint(raw[key], 10, 64)
	if err != nil {
		return 0, schederr.Wrap(schederr.ConfigError, "parse "+key, err)
	}
	return n, nil
}

func isPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}
