package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vilaca/pipeline-flow/internal/topology"
)

const (
	projectFile      = ".pipeline.yml"
	branchFilePrefix = ".pipeline."
	branchFileSuffix = ".yml"
)

// projectRecord is the YAML layout of config/.pipeline.yml.
type projectRecord struct {
	DevelopmentBranch       string   `yaml:"developmentBranch"`
	AvailableTargetBranches []string `yaml:"availableTargetBranches"`
	ManualActionsFileURL    string   `yaml:"manualActionsFileUrl"`
}

// branchRecord is the YAML layout of config/branches/.pipeline.<branch>.yml.
type branchRecord struct {
	MergeTargets []string `yaml:"mergeTargets"`
	Alias        string   `yaml:"alias"`
	InstanceURL  string   `yaml:"instanceUrl"`
}

// FileSource reads the pipeline configuration of a repository checkout.
type FileSource struct {
	root     string
	validate *validator.Validate
}

// NewFileSource creates a source rooted at a repository directory.
func NewFileSource(repoDir string) *FileSource {
	return &FileSource{
		root:     repoDir,
		validate: validator.New(),
	}
}

func (s *FileSource) configDir() string {
	return filepath.Join(s.root, "config")
}

func (s *FileSource) branchesDir() string {
	return filepath.Join(s.configDir(), "branches")
}

// WatchDirs returns the directories whose changes affect the configuration.
func (s *FileSource) WatchDirs() []string {
	return []string{s.configDir(), s.branchesDir()}
}

// LoadProject reads the project settings. A missing file yields empty settings.
func (s *FileSource) LoadProject() (topology.ProjectConfig, error) {
	var rec projectRecord
	found, err := readYAML(filepath.Join(s.configDir(), projectFile), &rec)
	if err != nil || !found {
		return topology.ProjectConfig{}, err
	}
	return topology.ProjectConfig{
		DevelopmentBranch:       strings.TrimSpace(rec.DevelopmentBranch),
		AvailableTargetBranches: rec.AvailableTargetBranches,
		ManualActionsFileURL:    strings.TrimSpace(rec.ManualActionsFileURL),
	}, nil
}

// LoadBranches reads and validates every branch record, ordered by branch name.
// A missing branches directory yields no records. Invalid fields are dropped
// and reported in the record's Warnings; only unreadable files are errors.
func (s *FileSource) LoadBranches() ([]topology.BranchConfig, error) {
	entries, err := os.ReadDir(s.branchesDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.branchesDir(), err)
	}

	var records []topology.BranchConfig
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, branchFilePrefix) || !strings.HasSuffix(name, branchFileSuffix) {
			continue
		}
		branchName := strings.TrimSuffix(strings.TrimPrefix(name, branchFilePrefix), branchFileSuffix)
		if branchName == "" {
			continue
		}

		var rec branchRecord
		if _, err := readYAML(filepath.Join(s.branchesDir(), name), &rec); err != nil {
			return nil, err
		}
		cfg := topology.BranchConfig{
			BranchName:      branchName,
			MergeTargets:    rec.MergeTargets,
			Alias:           strings.TrimSpace(rec.Alias),
			DeployTargetURL: strings.TrimSpace(rec.InstanceURL),
		}
		if err := s.validate.Struct(cfg); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return nil, fmt.Errorf("failed to validate branch %s: %w", branchName, err)
			}
			cfg = dropInvalidFields(cfg, fieldErrs)
		}
		records = append(records, cfg)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].BranchName < records[j].BranchName })
	return records, nil
}

// dropInvalidFields clears the fields that failed validation and records a
// warning for each, so one bad value never hides the rest of the pipeline.
func dropInvalidFields(cfg topology.BranchConfig, fieldErrs validator.ValidationErrors) topology.BranchConfig {
	blankTargets := false
	for _, fe := range fieldErrs {
		switch {
		case fe.StructField() == "DeployTargetURL":
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
				"Invalid configuration for branch %s: instanceUrl %q is not a valid URL", cfg.BranchName, cfg.DeployTargetURL))
			cfg.DeployTargetURL = ""
		case strings.HasPrefix(fe.StructField(), "MergeTargets"):
			blankTargets = true
		default:
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
				"Invalid configuration for branch %s: %s fails %q", cfg.BranchName, fe.Field(), fe.Tag()))
		}
	}

	if blankTargets {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"Invalid configuration for branch %s: mergeTargets contains an empty entry", cfg.BranchName))
		var targets []string
		for _, target := range cfg.MergeTargets {
			if target != "" {
				targets = append(targets, target)
			}
		}
		cfg.MergeTargets = targets
	}
	return cfg
}

// HasKeyFile reports whether config/branches/.jwt/<branch>.key exists.
func (s *FileSource) HasKeyFile(branchName string) bool {
	info, err := os.Stat(filepath.Join(s.branchesDir(), ".jwt", branchName+".key"))
	return err == nil && !info.IsDir()
}

// readYAML decodes a YAML file into out. It reports false for a missing file.
func readYAML(path string, out interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// DiscoverRemoteURL returns the url of the "origin" remote in the repository
// git config, or the first remote when there is no origin. It returns "" when
// nothing is found.
func DiscoverRemoteURL(repoDir string) string {
	f, err := os.Open(filepath.Join(repoDir, ".git", "config"))
	if err != nil {
		return ""
	}
	defer f.Close()

	var section, first, origin string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			section = line
			continue
		}
		if !strings.HasPrefix(section, `[remote "`) {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "url" {
			continue
		}
		value = strings.TrimSpace(value)
		if first == "" {
			first = value
		}
		if section == `[remote "origin"]` && origin == "" {
			origin = value
		}
	}

	if origin != "" {
		return origin
	}
	return first
}
