package graph

import (
	"fmt"
	"sort"

	"github.com/vilaca/pipeline-flow/internal/domain"
	"github.com/vilaca/pipeline-flow/internal/topology"
)

const (
	devWorkspaceNode  = "developer_sandboxes"
	devWorkspaceLabel = "Developer sandboxes"
	pushPullLabel     = "Push / Pull"
)

// Input carries everything the diagram is computed from.
type Input struct {
	// Branches are the enriched pipeline branches, highest level first.
	Branches         []domain.Branch
	OpenPullRequests []domain.PullRequest
	// Authenticated is true when a hosting provider could be resolved.
	Authenticated bool
	// CreatePullRequestURL returns "" when the provider offers no creation page.
	CreatePullRequestURL func(sourceBranch, targetBranch string) string
	// DevelopmentBranch, when it names a pipeline branch, gets a push/pull link
	// from the developer workspace.
	DevelopmentBranch string
}

// Options controls the textual output.
type Options struct {
	// Wrap encloses the emitted text in a ```mermaid fenced block.
	Wrap bool
}

// Diagram is the node/link graph together with its Mermaid rendering.
type Diagram struct {
	Nodes    []Node
	Links    []Link
	Lines    []string
	Warnings []string
	opts     Options
}

type builder struct {
	in        Input
	nodes     []Node
	links     []Link
	warnings  []string
	used      map[string]bool
	branchIDs map[string]string
	isTarget  map[string]bool
}

// Build computes nodes and links from the input and emits the diagram text.
func Build(in Input, opts Options) *Diagram {
	b := &builder{
		in:        in,
		used:      map[string]bool{branchesSubgraph: true, targetsSubgraph: true},
		branchIDs: make(map[string]string),
		isTarget:  make(map[string]bool),
	}
	for _, br := range in.Branches {
		for _, target := range br.MergeTargets {
			b.isTarget[target] = true
		}
	}

	b.addBranchNodes()
	b.addMergeLinks()
	b.addFeatureBranches()
	b.addPushPull()
	b.addDeployTargets()

	d := &Diagram{Nodes: b.nodes, Links: b.links, Warnings: b.warnings, opts: opts}
	d.Lines = emit(d.Nodes, d.Links, opts)
	return d
}

// Text returns the emitted diagram as one string.
func (d *Diagram) Text() string {
	return joinLines(d.Lines)
}

// uniqueName sanitizes s and disambiguates it against names already in use.
func (b *builder) uniqueName(s string) string {
	base := SanitizeNodeName(s)
	name := base
	for i := 2; b.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	b.used[name] = true
	return name
}

func (b *builder) isMajor(branchName string) bool {
	return topology.IsMajorBranch(branchName, b.isTarget[branchName])
}

func (b *builder) addBranchNodes() {
	for _, br := range b.in.Branches {
		name := b.uniqueName(br.Name)
		b.branchIDs[br.Name] = name

		class := ClassGitMajor
		if br.OrgType == domain.OrgTypeProd {
			class = ClassGitMain
		}
		label := br.Name
		if n := len(br.PullRequestsSinceLastMerge); n > 1 {
			label = fmt.Sprintf("%s (%d)", br.Name, n)
		}
		b.nodes = append(b.nodes, Node{
			Name:  name,
			Label: label,
			Class: class,
			Level: br.Level,
			Kind:  KindBranch,
		})
	}
}

// findOpenPullRequest returns the first open PR from source into target.
func (b *builder) findOpenPullRequest(source, target string) *domain.PullRequest {
	for i := range b.in.OpenPullRequests {
		pr := &b.in.OpenPullRequests[i]
		if pr.SourceBranch == source && pr.TargetBranch == target {
			return pr
		}
	}
	return nil
}

// mergeLabel returns the label of a merge link and whether it is active.
func (b *builder) mergeLabel(source, target string, pr *domain.PullRequest) (string, bool) {
	if pr != nil {
		return fmt.Sprintf("#%s %s", pr.DisplayNumber(), pr.JobsStatus.Emoji()), pr.JobsStatus.IsInProgress()
	}
	if !b.in.Authenticated {
		return "Merge", false
	}
	if b.in.CreatePullRequestURL != nil {
		if link := b.in.CreatePullRequestURL(source, target); link != "" {
			return fmt.Sprintf("<a href='%s'>Create PR</a>", link), false
		}
	}
	return "No PR", false
}

func (b *builder) addMergeLinks() {
	for _, br := range b.in.Branches {
		for _, target := range br.MergeTargets {
			targetID, ok := b.branchIDs[target]
			if !ok {
				b.warnings = append(b.warnings,
					fmt.Sprintf("Branch %s merges into %s, which is not a configured pipeline branch", br.Name, target))
				continue
			}

			pr := b.findOpenPullRequest(br.Name, target)
			label, active := b.mergeLabel(br.Name, target, pr)

			linkType := LinkFeatureMerge
			if b.isMajor(br.Name) || b.isMajor(target) {
				linkType = LinkMajorMerge
			}
			if active {
				linkType = activeVariant(linkType)
			}
			b.links = append(b.links, Link{
				Source:      b.branchIDs[br.Name],
				Target:      targetID,
				Type:        linkType,
				Label:       label,
				PullRequest: pr,
			})
		}
	}
}

// featureLevel places feature nodes one level below the lowest root branch.
func (b *builder) featureLevel() int {
	level, found := 0, false
	for _, br := range b.in.Branches {
		if len(br.MergeTargets) > 0 {
			continue
		}
		if !found || br.Level < level {
			level, found = br.Level, true
		}
	}
	if !found {
		for _, br := range b.in.Branches {
			if !found || br.Level < level {
				level, found = br.Level, true
			}
		}
	}
	if !found {
		level = topology.LevelOf(domain.OrgTypeOther)
	}
	return level - 1
}

// addFeatureBranches adds a node for each open PR source that is not a
// pipeline branch, linked to its pipeline target.
func (b *builder) addFeatureBranches() {
	var orphans []domain.PullRequest
	for _, pr := range b.in.OpenPullRequests {
		if _, known := b.branchIDs[pr.SourceBranch]; known {
			continue
		}
		if _, known := b.branchIDs[pr.TargetBranch]; !known {
			continue
		}
		orphans = append(orphans, pr)
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		if orphans[i].SourceBranch != orphans[j].SourceBranch {
			return orphans[i].SourceBranch < orphans[j].SourceBranch
		}
		if orphans[i].TargetBranch != orphans[j].TargetBranch {
			return orphans[i].TargetBranch < orphans[j].TargetBranch
		}
		return orphans[i].Number < orphans[j].Number
	})

	level := b.featureLevel()
	featureIDs := make(map[string]string)
	for i := range orphans {
		pr := orphans[i]
		id, ok := featureIDs[pr.SourceBranch]
		if !ok {
			id = b.uniqueName(pr.SourceBranch)
			featureIDs[pr.SourceBranch] = id
			b.nodes = append(b.nodes, Node{
				Name:  id,
				Label: pr.SourceBranch,
				Class: ClassGitFeature,
				Level: level,
				Kind:  KindBranch,
			})
		}

		label, active := b.mergeLabel(pr.SourceBranch, pr.TargetBranch, &pr)
		linkType := LinkFeatureMerge
		if active {
			linkType = LinkFeatureMergeActive
		}
		b.links = append(b.links, Link{
			Source:      id,
			Target:      b.branchIDs[pr.TargetBranch],
			Type:        linkType,
			Label:       label,
			PullRequest: &orphans[i],
		})
	}
}

func (b *builder) addPushPull() {
	devID, ok := b.branchIDs[b.in.DevelopmentBranch]
	if b.in.DevelopmentBranch == "" || !ok {
		return
	}

	level := b.featureLevel()
	for _, n := range b.nodes {
		if n.Name == devID {
			level = n.Level - 1
		}
	}
	id := b.uniqueName(devWorkspaceNode)
	b.nodes = append(b.nodes, Node{
		Name:  id,
		Label: devWorkspaceLabel,
		Class: ClassGitFeature,
		Level: level,
		Kind:  KindBranch,
	})
	b.links = append(b.links, Link{
		Source: id,
		Target: devID,
		Type:   LinkPushPull,
		Label:  pushPullLabel,
	})
}

func (b *builder) addDeployTargets() {
	for _, br := range b.in.Branches {
		if br.DeployTargetURL == "" {
			continue
		}

		branchID := b.branchIDs[br.Name]
		class := ClassSalesforceMajor
		if br.OrgType == domain.OrgTypeProd {
			class = ClassSalesforceProd
		}
		label := br.Alias
		if label == "" {
			label = cleanTargetURL(br.DeployTargetURL)
		}
		group := ""
		if !b.isMajor(br.Name) {
			group = branchID
		}

		id := b.uniqueName(br.Name + "_org")
		b.nodes = append(b.nodes, Node{
			Name:  id,
			Label: label,
			Class: class,
			Level: br.Level,
			Group: group,
			Kind:  KindTarget,
		})

		status := br.JobsStatus
		if status == "" {
			status = domain.StatusUnknown
		}
		linkType := LinkDeploy
		if status.IsInProgress() {
			linkType = LinkDeployActive
		}
		b.links = append(b.links, Link{
			Source: branchID,
			Target: id,
			Type:   linkType,
			Label:  "Deploy " + status.Emoji(),
		})
	}
}

func activeVariant(t LinkType) LinkType {
	switch t {
	case LinkMajorMerge:
		return LinkMajorMergeActive
	case LinkFeatureMerge:
		return LinkFeatureMergeActive
	case LinkDeploy:
		return LinkDeployActive
	default:
		return t
	}
}
