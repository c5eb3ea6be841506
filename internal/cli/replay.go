package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/harun/drawerq/pkg/scenario"
	"github.com/spf13/cobra"
)

var (
	replayWatch bool
	replayJSON  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.json|scenario.yaml|dir>...",
	Short: "Replay scenario files and print their visibility timelines",
	Long: `Replay scripted scenarios against a fresh drawer queue and print the
sequence of overlays a renderer would have mounted. Directories are expanded
to the .json files they contain. With --watch, scenarios are replayed again
every time they change on disk.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVarP(&replayWatch, "watch", "w", false, "replay scenarios again when they change")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print timelines as JSON lines")
	rootCmd.AddCommand(replayCmd)
}

// replayResult is the JSON line printed per scenario with --json.
type replayResult struct {
	File     string           `json:"file"`
	Scenario string           `json:"scenario,omitempty"`
	Frames   []scenario.Frame `json:"frames,omitempty"`
	Timeline string           `json:"timeline,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// replayPrinter serializes output from the initial pass and watcher callbacks.
type replayPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	asJSON bool
}

func (p *replayPrinter) print(res replayResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		_ = json.NewEncoder(p.out).Encode(res)
		return
	}

	name := res.Scenario
	if name == "" {
		name = res.File
	}
	if res.Error != "" {
		fmt.Fprintf(p.out, "FAIL %s\n", name)
		if res.Timeline != "" {
			fmt.Fprintf(p.out, "     %s\n", res.Timeline)
		}
		fmt.Fprintf(p.out, "     %s\n", res.Error)
		return
	}
	fmt.Fprintf(p.out, "ok   %s\n     %s\n", name, res.Timeline)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	files, err := expandScenarioPaths(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no scenario files found in %v", args)
	}

	runner := scenario.NewRunner(log.GetZerolog())
	printer := &replayPrinter{out: cmd.OutOrStdout(), asJSON: replayJSON}
	ctx := cmd.Context()

	failed := 0
	for _, file := range files {
		if err := replayFile(ctx, runner, printer, file); err != nil {
			failed++
		}
	}

	if !replayWatch {
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(files))
		}
		return nil
	}

	watcher, err := scenario.NewWatcher(scenario.WatcherConfig{
		Paths:  args,
		Logger: log.GetZerolog(),
		OnChange: func(path string) error {
			return replayFile(ctx, runner, printer, path)
		},
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes, press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func replayFile(ctx context.Context, runner *scenario.Runner, printer *replayPrinter, path string) error {
	res := replayResult{File: path}

	sc, err := scenario.Load(path)
	if err != nil {
		res.Error = err.Error()
		printer.print(res)
		return err
	}
	res.Scenario = sc.Name

	timeline, err := runner.Run(ctx, sc)
	if timeline != nil {
		res.Frames = timeline.Frames
		res.Timeline = timeline.String()
	}
	if err != nil {
		res.Error = err.Error()
	}
	printer.print(res)
	return err
}

// expandScenarioPaths replaces each directory with the scenario files it
// holds, sorted by name.
func expandScenarioPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		var matches []string
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || !scenario.IsScenarioFile(name) {
				continue
			}
			matches = append(matches, filepath.Join(arg, name))
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
