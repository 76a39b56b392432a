// grftool inspects and builds the GRF archives meshconv reads its inputs from.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/resmesh/pkg/encoding"
	"github.com/Faultbox/resmesh/pkg/grf"
	"github.com/Faultbox/resmesh/pkg/scene"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `grftool - GRF archive utility

Usage:
  grftool <command> [options]

Commands:
  info <file.grf>                     Show archive information
  list [-n N] <file.grf> [pattern]    List files (optional glob pattern)
  models <file.grf>                   List files meshconv can convert
  extract <file.grf> <path> [output]  Extract file(s) to directory
  pack <file.grf> <dir>               Store every file below dir in a new archive

Every command accepts -charset (default euc-kr) for entry names.

Examples:
  grftool info data.grf
  grftool list data.grf "*.rsm"
  grftool models data.grf
  grftool extract data.grf data/model/prontera/fountain.rsm ./output
  grftool pack models.grf ./data`)
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: no command given", errUsage)
	}

	command, args := args[0], args[1:]
	switch command {
	case "info":
		return cmdInfo(args, stdout)
	case "list", "ls":
		return cmdList(args, stdout)
	case "models":
		return cmdModels(args, stdout)
	case "extract", "x":
		return cmdExtract(args, stdout)
	case "pack":
		return cmdPack(args, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// commandFlags returns a flag set carrying the shared -charset flag.
func commandFlags(name string) (*flag.FlagSet, *string) {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	charset := fset.String("charset", encoding.EUCKR, "charset of entry names")
	return fset, charset
}

func openArchive(file, charset string) (*grf.Archive, error) {
	enc, err := encoding.Lookup(charset)
	if err != nil {
		return nil, err
	}
	return grf.Open(file, enc)
}

func cmdInfo(args []string, stdout io.Writer) error {
	fset, charset := commandFlags("info")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 {
		return fmt.Errorf("%w: grftool info <file.grf>", errUsage)
	}

	archive, err := openArchive(fset.Arg(0), *charset)
	if err != nil {
		return err
	}
	defer archive.Close()

	files := archive.List()

	extCount := make(map[string]int)
	var totalSize int64
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		if info, err := fs.Stat(archive, f); err == nil {
			totalSize += info.Size()
		}
	}

	fmt.Fprintf(stdout, "Archive: %s\n", fset.Arg(0))
	fmt.Fprintf(stdout, "Version: 0x%x\n", archive.Header().Version)
	fmt.Fprintf(stdout, "Files:   %d\n", len(files))
	fmt.Fprintf(stdout, "Size:    %.2f MB\n", float64(totalSize)/(1024*1024))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Files by type:")

	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})

	for _, s := range stats {
		fmt.Fprintf(stdout, "  %-10s %d\n", s.ext, s.count)
	}
	return nil
}

func cmdList(args []string, stdout io.Writer) error {
	fset, charset := commandFlags("list")
	limit := fset.Int("n", 0, "Limit output to N files (0 = all)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 {
		return fmt.Errorf("%w: grftool list <file.grf> [pattern]", errUsage)
	}

	archive, err := openArchive(fset.Arg(0), *charset)
	if err != nil {
		return err
	}
	defer archive.Close()

	pattern := ""
	if fset.NArg() > 1 {
		pattern = strings.ToLower(fset.Arg(1))
	}

	count := 0
	for _, f := range archive.List() {
		if pattern != "" {
			matched, _ := path.Match(pattern, path.Base(f))
			if !matched && !strings.Contains(f, pattern) {
				continue
			}
		}
		fmt.Fprintln(stdout, f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}
	return nil
}

// cmdModels lists the entries whose extension has a scene importer.
func cmdModels(args []string, stdout io.Writer) error {
	fset, charset := commandFlags("models")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 {
		return fmt.Errorf("%w: grftool models <file.grf>", errUsage)
	}

	archive, err := openArchive(fset.Arg(0), *charset)
	if err != nil {
		return err
	}
	defer archive.Close()

	supported := make(map[string]bool)
	for _, ext := range scene.Extensions() {
		supported[ext] = true
	}
	for _, f := range archive.List() {
		if supported[path.Ext(f)] {
			fmt.Fprintln(stdout, f)
		}
	}
	return nil
}

func cmdExtract(args []string, stdout io.Writer) error {
	fset, charset := commandFlags("extract")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 2 {
		return fmt.Errorf("%w: grftool extract <file.grf> <path> [output_dir]", errUsage)
	}

	name := fset.Arg(1)
	outputDir := "."
	if fset.NArg() > 2 {
		outputDir = fset.Arg(2)
	}

	archive, err := openArchive(fset.Arg(0), *charset)
	if err != nil {
		return err
	}
	defer archive.Close()

	if !strings.Contains(name, "*") {
		data, err := archive.ReadFile(name)
		if err != nil {
			return err
		}
		out := filepath.Join(outputDir, path.Base(grf.NormalizeName(name)))
		if err := writeOutput(out, data); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Extracted: %s (%d bytes)\n", out, len(data))
		return nil
	}

	pattern := strings.ToLower(name)
	extracted := 0
	for _, f := range archive.List() {
		if matched, _ := path.Match(pattern, path.Base(f)); !matched {
			continue
		}
		data, err := archive.ReadFile(f)
		if err != nil {
			return err
		}
		// directory structure is preserved for pattern extraction
		out := filepath.Join(outputDir, filepath.FromSlash(f))
		if err := writeOutput(out, data); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Extracted: %s\n", out)
		extracted++
	}
	fmt.Fprintf(stdout, "Extracted %d files\n", extracted)
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// cmdPack stores every regular file below dir, named by its slash path
// relative to dir and encoded with -charset.
func cmdPack(args []string, stdout io.Writer) error {
	fset, charset := commandFlags("pack")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 2 {
		return fmt.Errorf("%w: grftool pack <file.grf> <dir>", errUsage)
	}

	enc, err := encoding.Lookup(*charset)
	if err != nil {
		return err
	}
	encoder := enc.NewEncoder()

	root := fset.Arg(1)
	var files []grf.File
	err = fs.WalkDir(os.DirFS(root), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		stored, err := encoder.String(name)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", name, err)
		}
		files = append(files, grf.File{Name: stored, Data: data})
		return nil
	})
	if err != nil {
		return err
	}

	out, err := os.Create(fset.Arg(0))
	if err != nil {
		return err
	}
	if err := grf.Write(out, files); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Packed %d files into %s\n", len(files), fset.Arg(0))
	return nil
}
