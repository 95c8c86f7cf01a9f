package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/spotUP/DEViLBOX-sub001/internal/cache"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/all"
	"github.com/spotUP/DEViLBOX-sub001/internal/server"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modconv",
	Short: "Convert tracker modules to the canonical song model",
	Long: `Modconv detects and converts tracker modules (ProTracker, Furnace,
Oktalyzer, AHX, TFMX, AMOS music banks and friends) into one canonical
song model, serialized as JSON.

Pipeline: raw module -> format detection -> parse -> canonical song`,
	Version: version,
}

var identifyCmd = &cobra.Command{
	Use:   "identify <file>...",
	Short: "Detect the format of module files",
	Long: `Run format detection only and print the matched format per file.

Examples:
  modconv identify axelf.mod
  modconv identify mdat.dangerfreak tune.fur songs/*.ahx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a module file to canonical song JSON",
	Long: `Convert a module file and write the canonical song as JSON.

Conversions are cached by content hash under .cache/songs; re-converting
an unchanged file is served from the cache.

Examples:
  modconv convert axelf.mod
  modconv convert tune.fur -o tune.json --pretty
  modconv convert tune.fur --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a converted module",
	Long: `Convert a module in memory and print a human-readable summary:
patterns, instruments, subsongs, initial tempo and speed.

Examples:
  modconv inspect axelf.mod
  modconv inspect tune.fur --dump`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP import service",
	Long: `Start the HTTP service: upload modules, poll conversion jobs,
download canonical song JSON.

Example:
  modconv serve --port 8080`,
	RunE: runServe,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the conversion cache",
	Long: `Inspect or clear the content-hash conversion cache.

Subcommands:
  info      Show cache size and entry count
  clear     Remove all cached conversions`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache size and entry count",
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached conversions",
	RunE:  runCacheClear,
}

var (
	// global flags
	verbose bool

	// convert flags
	outputPath  string
	noCache     bool
	prettyPrint bool

	// inspect flags
	dumpModel bool

	// serve flags
	port         int
	serveNoCache bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for song JSON (default: stdout)")
	convertCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the conversion cache")
	convertCmd.Flags().BoolVar(&prettyPrint, "pretty", false, "Indent the JSON output")

	inspectCmd.Flags().BoolVar(&dumpModel, "dump", false, "Dump the full song model")

	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "Skip the conversion cache")
}

// newRegistry builds the registry, wiring a logger when --verbose is set.
func newRegistry() *format.Registry {
	if !verbose {
		return all.NewRegistry()
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return all.NewRegistry(format.WithLogger(logger))
}

func runIdentify(cmd *cobra.Command, args []string) error {
	registry := newRegistry()
	failed := 0

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}

		f, err := registry.Identify(data, filepath.Base(path))
		if err != nil {
			fmt.Printf("%s: unrecognized\n", path)
			failed++
			continue
		}
		fmt.Printf("%s: %s\n", path, f.Name())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files not identified", failed, len(args))
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	s, fromCache, err := convertWithCache(data, path)
	if err != nil {
		return err
	}
	if verbose && fromCache {
		fmt.Fprintln(os.Stderr, "using cached conversion")
	}

	var out []byte
	if prettyPrint {
		out, err = json.MarshalIndent(s, "", "  ")
	} else {
		out, err = json.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("marshal song: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s: %s -> %s\n", path, s.Format, outputPath)
		return nil
	}

	fmt.Println(string(out))
	return nil
}

// convertWithCache converts the module, consulting the conversion cache
// unless --no-cache is set. Cache failures degrade to a plain conversion.
func convertWithCache(data []byte, path string) (*song.Song, bool, error) {
	registry := newRegistry()

	var songCache *cache.SongCache
	if !noCache {
		var err error
		songCache, err = cache.NewSongCache()
		if err != nil {
			songCache = nil
		}
	}

	key := cache.KeyForBytes(data)
	if songCache != nil {
		if rec, ok := songCache.Get(key); ok {
			return rec.Song, true, nil
		}
	}

	s, err := registry.Convert(data, filepath.Base(path))
	if err != nil {
		return nil, false, err
	}

	if songCache != nil {
		rec := &cache.Record{SourceFile: filepath.Base(path), Format: s.Format, Song: s}
		_ = songCache.Put(key, rec)
	}
	return s, false, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	registry := newRegistry()
	s, err := registry.Convert(data, filepath.Base(path))
	if err != nil {
		return err
	}

	if dumpModel {
		spew.Dump(s)
		return nil
	}

	printSummary(s, path)
	return nil
}

func printSummary(s *song.Song, path string) {
	fmt.Printf("File:        %s\n", path)
	fmt.Printf("Format:      %s\n", s.Format)
	fmt.Printf("Name:        %s\n", s.Name)
	if s.Author != "" {
		fmt.Printf("Author:      %s\n", s.Author)
	}
	fmt.Printf("Channels:    %d\n", s.Channels)
	fmt.Printf("Patterns:    %d\n", len(s.Patterns))
	fmt.Printf("Positions:   %d (restart %d)\n", s.SongLength(), s.RestartPosition)
	fmt.Printf("Instruments: %d\n", len(s.Instruments))
	fmt.Printf("Tempo:       %d BPM, speed %d\n", s.Tempo, s.Speed)

	pitch := "amiga"
	if s.PitchMode == song.PitchLinear {
		pitch = "linear"
	}
	fmt.Printf("Pitch mode:  %s\n", pitch)

	if len(s.NativeBlob) > 0 {
		fmt.Printf("Native blob: %d bytes\n", len(s.NativeBlob))
	}

	if len(s.Subsongs) > 0 {
		fmt.Printf("Subsongs:    %d\n", len(s.Subsongs))
		for i, sub := range s.Subsongs {
			fmt.Printf("  %2d: %s (%d BPM, speed %d)\n", i+1, sub.Name, sub.Tempo, sub.Speed)
		}
	}

	for i, inst := range s.Instruments {
		kind := "sample"
		detail := ""
		switch inst.Kind {
		case song.KindSample:
			if inst.Sample != nil {
				detail = fmt.Sprintf(", %d frames", inst.Sample.Frames())
			}
		case song.KindSynth:
			kind = "synth"
			if inst.Synth != nil {
				detail = fmt.Sprintf(", engine %s", inst.Synth.Engine)
			}
		}
		fmt.Printf("  %2d: %s (%s%s)\n", i+1, inst.Name, kind, detail)
	}

	if s.Comment != "" {
		fmt.Printf("Comment:\n%s\n", indent(s.Comment, "  "))
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(server.Config{
		Port:    port,
		NoCache: serveNoCache,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  Module import service running at: http://localhost:%d\n\n", port)
	return srv.Run()
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	songCache, err := cache.NewSongCache()
	if err != nil {
		return err
	}

	size, count, err := songCache.Size()
	if err != nil {
		return err
	}

	fmt.Printf("Schema version: %s\n", cache.GetVersion())
	fmt.Printf("Entries:        %d\n", count)
	fmt.Printf("Size:           %.1f MB\n", float64(size)/(1024*1024))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	songCache, err := cache.NewSongCache()
	if err != nil {
		return err
	}

	if err := songCache.Clear(); err != nil {
		return err
	}
	fmt.Println("Conversion cache cleared.")
	return nil
}
