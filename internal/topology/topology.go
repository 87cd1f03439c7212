// Package topology classifies long-lived branches into pipeline roles,
// infers missing merge targets and reports configuration warnings.
package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// BranchConfig is one already-parsed branch configuration record.
type BranchConfig struct {
	BranchName      string   `validate:"required"`
	MergeTargets    []string `validate:"dive,required"`
	Alias           string
	DeployTargetURL string `validate:"omitempty,url"`

	// Warnings are problems found while loading the record.
	Warnings []string `validate:"-"`
}

// ProjectConfig holds the project-level settings checked once per build.
type ProjectConfig struct {
	DevelopmentBranch       string
	AvailableTargetBranches []string
	ManualActionsFileURL    string
}

// KeyFileChecker reports whether a branch has its encrypted credential key file.
// A nil checker disables the check.
type KeyFileChecker func(branchName string) bool

// Topology is the classified, sorted branch list of one build.
type Topology struct {
	Branches        []domain.Branch
	ProjectWarnings []string

	byName  map[string]int
	parents map[string][]string // merge target -> branches merging into it
}

var levels = map[domain.OrgType]int{
	domain.OrgTypeProd:        100,
	domain.OrgTypePreprod:     90,
	domain.OrgTypeUATRun:      80,
	domain.OrgTypeUAT:         70,
	domain.OrgTypeIntegration: 50,
	domain.OrgTypeOther:       40,
}

// Classify returns the pipeline role of a branch name. Case-insensitive.
func Classify(branchName string) domain.OrgType {
	name := strings.ToLower(branchName)
	switch {
	case strings.HasPrefix(name, "prod") || strings.HasPrefix(name, "main"):
		return domain.OrgTypeProd
	case strings.HasPrefix(name, "preprod") || strings.HasPrefix(name, "staging"):
		return domain.OrgTypePreprod
	case (strings.HasPrefix(name, "uat") || strings.HasPrefix(name, "recette")) && strings.Contains(name, "run"):
		return domain.OrgTypeUATRun
	case strings.HasPrefix(name, "uat") || strings.HasPrefix(name, "recette"):
		return domain.OrgTypeUAT
	case strings.HasPrefix(name, "integ"):
		return domain.OrgTypeIntegration
	default:
		return domain.OrgTypeOther
	}
}

// LevelOf returns the priority of an org type; higher is closer to production.
func LevelOf(orgType domain.OrgType) int {
	if level, ok := levels[orgType]; ok {
		return level
	}
	return levels[domain.OrgTypeOther]
}

// Build classifies every record, resolves merge targets and collects warnings.
// The result is sorted by level descending, then branch name ascending.
func Build(records []BranchConfig, project ProjectConfig, hasKeyFile KeyFileChecker) *Topology {
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.BranchName)
	}
	sort.Strings(names)

	branches := make([]domain.Branch, 0, len(records))
	for _, rec := range records {
		orgType := Classify(rec.BranchName)
		branch := domain.Branch{
			Name:            rec.BranchName,
			OrgType:         orgType,
			Level:           LevelOf(orgType),
			Alias:           rec.Alias,
			DeployTargetURL: rec.DeployTargetURL,
			JobsStatus:      domain.StatusUnknown,
			Warnings:        append([]string(nil), rec.Warnings...),
		}

		explicit := normalizeTargets(rec.BranchName, rec.MergeTargets)
		guessed := guessMergeTargets(rec.BranchName, orgType, names)
		if len(explicit) > 0 {
			branch.MergeTargets = explicit
		} else {
			branch.MergeTargets = guessed
		}

		if orgType != domain.OrgTypeProd &&
			!strings.Contains(strings.ToLower(rec.BranchName), "training") &&
			len(explicit) == 0 && len(guessed) == 0 {
			branch.Warnings = append(branch.Warnings, missingTargetWarning(branch, records))
		}

		if hasKeyFile != nil && !hasKeyFile(rec.BranchName) {
			branch.Warnings = append(branch.Warnings,
				fmt.Sprintf("No certificate key file found for branch %s", rec.BranchName))
		}

		branches = append(branches, branch)
	}

	sort.SliceStable(branches, func(i, j int) bool {
		if branches[i].Level != branches[j].Level {
			return branches[i].Level > branches[j].Level
		}
		return branches[i].Name < branches[j].Name
	})

	t := &Topology{
		Branches: branches,
		byName:   make(map[string]int, len(branches)),
		parents:  make(map[string][]string),
	}
	for i, b := range branches {
		t.byName[b.Name] = i
		for _, target := range b.MergeTargets {
			t.parents[target] = append(t.parents[target], b.Name)
		}
	}
	t.ProjectWarnings = projectWarnings(project, t)

	return t
}

// Warnings returns project warnings followed by per-branch warnings in sort order.
func (t *Topology) Warnings() []string {
	warnings := append([]string{}, t.ProjectWarnings...)
	for _, b := range t.Branches {
		warnings = append(warnings, b.Warnings...)
	}
	return warnings
}

// Branch returns the branch with the given name.
func (t *Topology) Branch(name string) (*domain.Branch, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.Branches[i], true
}

// Names returns branch names in sort order.
func (t *Topology) Names() []string {
	names := make([]string, len(t.Branches))
	for i, b := range t.Branches {
		names[i] = b.Name
	}
	return names
}

// ChildrenOf returns every branch that merges, directly or transitively, into
// the given branch. Cycles in the configuration terminate.
func (t *Topology) ChildrenOf(branchName string) []string {
	visited := map[string]bool{branchName: true}
	var children []string

	queue := []string{branchName}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range t.parents[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			children = append(children, child)
			queue = append(queue, child)
		}
	}

	sort.Strings(children)
	return children
}

// IsMajor reports whether a branch is a recognized pipeline role or is
// declared as another branch's merge target.
func (t *Topology) IsMajor(branchName string) bool {
	return IsMajorBranch(branchName, len(t.parents[branchName]) > 0)
}

// IsMajorBranch is the major-branch rule: a recognized pipeline role, or a
// branch that other branches merge into.
func IsMajorBranch(branchName string, isMergeTarget bool) bool {
	return isMergeTarget || Classify(branchName) != domain.OrgTypeOther
}

// normalizeTargets drops empty entries, duplicates and self references.
func normalizeTargets(branchName string, targets []string) []string {
	seen := make(map[string]bool, len(targets))
	var result []string
	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" || target == branchName || seen[target] {
			continue
		}
		seen[target] = true
		result = append(result, target)
	}
	return result
}

// guessMergeTargets picks every known branch of the next role up.
func guessMergeTargets(branchName string, orgType domain.OrgType, sortedNames []string) []string {
	var want domain.OrgType
	switch orgType {
	case domain.OrgTypePreprod:
		want = domain.OrgTypeProd
	case domain.OrgTypeUAT, domain.OrgTypeUATRun:
		want = domain.OrgTypePreprod
	case domain.OrgTypeIntegration:
		want = domain.OrgTypeUAT
	default:
		return nil
	}

	var targets []string
	for _, name := range sortedNames {
		if name != branchName && Classify(name) == want {
			targets = append(targets, name)
		}
	}
	return targets
}

// missingTargetWarning names the closest higher-level branch as an example target.
func missingTargetWarning(branch domain.Branch, records []BranchConfig) string {
	example := ""
	exampleLevel := 0
	for _, rec := range records {
		level := LevelOf(Classify(rec.BranchName))
		if rec.BranchName == branch.Name || level <= branch.Level {
			continue
		}
		if example == "" || level < exampleLevel || (level == exampleLevel && rec.BranchName < example) {
			example = rec.BranchName
			exampleLevel = level
		}
	}

	msg := fmt.Sprintf("No merge target defined for branch %s", branch.Name)
	if example != "" {
		msg += fmt.Sprintf(" (for example: mergeTargets: [%s])", example)
	}
	return msg
}

func projectWarnings(project ProjectConfig, t *Topology) []string {
	var warnings []string

	if strings.TrimSpace(project.ManualActionsFileURL) == "" {
		warnings = append(warnings, "No manual actions tracking file is defined (manualActionsFileUrl)")
	}

	if project.DevelopmentBranch != "" {
		if _, ok := t.byName[project.DevelopmentBranch]; !ok {
			warnings = append(warnings,
				fmt.Sprintf("Development branch %s is not a configured pipeline branch", project.DevelopmentBranch))
		}
	}

	var missing []string
	for _, name := range project.AvailableTargetBranches {
		if _, ok := t.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("Available target branches not found in pipeline: %s", strings.Join(missing, ", ")))
	}

	return warnings
}
