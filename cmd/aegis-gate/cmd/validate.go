package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate the policy files in a directory",
	Long: `Parse and validate every *.yaml / *.yml policy file in the given
directory (default: ./policies) without starting the server. Exits
non-zero if any file is invalid, so it can gate policy changes in CI.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := "./policies"
	if len(args) > 0 {
		dir = args[0]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read policy dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return fmt.Errorf("no policy files found in %s", dir)
	}

	var failed int
	for _, path := range paths {
		if err := validateFile(path); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL  %s: %v\n", filepath.Base(path), err)
			continue
		}
		fmt.Printf("OK    %s\n", filepath.Base(path))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d policy files invalid", failed, len(paths))
	}
	fmt.Printf("%d policy files valid\n", len(paths))
	return nil
}

func validateFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f policy.File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return f.Validate()
}
