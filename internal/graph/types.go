// Package graph turns classified branches and live provider data into a
// node/link graph and emits it as a Mermaid flowchart.
package graph

import (
	"regexp"
	"strings"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// NodeClass is the style class of a node.
type NodeClass string

const (
	ClassGitMain         NodeClass = "gitMain"
	ClassGitMajor        NodeClass = "gitMajor"
	ClassGitFeature      NodeClass = "gitFeature"
	ClassSalesforceProd  NodeClass = "salesforceProd"
	ClassSalesforceMajor NodeClass = "salesforceMajor"
)

// classOrder fixes the emission order of classDef lines.
var classOrder = []NodeClass{
	ClassGitMain, ClassGitMajor, ClassGitFeature, ClassSalesforceProd, ClassSalesforceMajor,
}

var classDefs = map[NodeClass]string{
	ClassGitMain:         "fill:#CAFBEB,stroke:#0B827C,stroke-width:3px,color:#0B827C,font-weight:bold",
	ClassGitMajor:        "fill:#EEF4FF,stroke:#0176D3,stroke-width:2px,color:#014486",
	ClassGitFeature:      "fill:#FEF1EE,stroke:#BA0517,stroke-width:1px,color:#8C0010",
	ClassSalesforceProd:  "fill:#032D60,stroke:#0B827C,stroke-width:3px,color:#FFFFFF,font-weight:bold",
	ClassSalesforceMajor: "fill:#0176D3,stroke:#014486,stroke-width:2px,color:#FFFFFF",
}

// LinkType is the semantic kind of a link; it selects the arrow and the link style.
type LinkType string

const (
	LinkMajorMerge         LinkType = "majorMerge"
	LinkMajorMergeActive   LinkType = "majorMergeActive"
	LinkFeatureMerge       LinkType = "featureMerge"
	LinkFeatureMergeActive LinkType = "featureMergeActive"
	LinkPushPull           LinkType = "pushPull"
	LinkDeploy             LinkType = "deploy"
	LinkDeployActive       LinkType = "deployActive"
)

// linkTypeOrder fixes the emission order of linkStyle lines.
var linkTypeOrder = []LinkType{
	LinkMajorMerge, LinkMajorMergeActive, LinkFeatureMerge, LinkFeatureMergeActive,
	LinkPushPull, LinkDeploy, LinkDeployActive,
}

var linkStyles = map[LinkType]string{
	LinkMajorMerge:         "stroke:#0176D3,stroke-width:4px",
	LinkMajorMergeActive:   "stroke:#0176D3,stroke-width:4px,stroke-dasharray:9\\,5,stroke-dashoffset:900,animation:dash 25s linear infinite",
	LinkFeatureMerge:       "stroke:#BA0517,stroke-width:2px",
	LinkFeatureMergeActive: "stroke:#BA0517,stroke-width:2px,stroke-dasharray:9\\,5,stroke-dashoffset:900,animation:dash 25s linear infinite",
	LinkPushPull:           "stroke:#706E6B,stroke-width:2px",
	LinkDeploy:             "stroke:#0B827C,stroke-width:2px",
	LinkDeployActive:       "stroke:#0B827C,stroke-width:3px,stroke-dasharray:9\\,5,stroke-dashoffset:900,animation:dash 25s linear infinite",
}

// linkCategory groups link lines in the emitted text: merges, then push/pull, then deploys.
func (t LinkType) category() int {
	switch t {
	case LinkPushPull:
		return 1
	case LinkDeploy, LinkDeployActive:
		return 2
	default:
		return 0
	}
}

func (t LinkType) arrow() string {
	switch t {
	case LinkMajorMerge, LinkMajorMergeActive:
		return "==>"
	case LinkDeploy, LinkDeployActive:
		return "-.->"
	default:
		return "-->"
	}
}

// NodeKind distinguishes branch nodes from deployment-target nodes.
type NodeKind string

const (
	KindBranch NodeKind = "branch"
	KindTarget NodeKind = "target"
)

// Node is a diagram node, rebuilt on every diagram build.
type Node struct {
	Name  string    `json:"nodeName"`
	Label string    `json:"label"`
	Class NodeClass `json:"styleClass"`
	Level int       `json:"level"`
	Group string    `json:"group,omitempty"`
	Kind  NodeKind  `json:"kind"`
}

// Link is a directed edge between two nodes.
type Link struct {
	Source      string              `json:"source"`
	Target      string              `json:"target"`
	Type        LinkType            `json:"linkType"`
	Label       string              `json:"label"`
	PullRequest *domain.PullRequest `json:"activePullRequest,omitempty"`
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeNodeName converts any text into a diagram-safe identifier.
func SanitizeNodeName(s string) string {
	name := unsafeChars.ReplaceAllString(s, "_")
	name = underscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "unknown"
	}
	return name
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

var targetHostSuffixes = []string{
	".sandbox.my.salesforce.com",
	".my.salesforce.com",
	".sandbox.lightning.force.com",
	".lightning.force.com",
	".salesforce.com",
}

// cleanTargetURL keeps the meaningful part of a deployment target URL.
func cleanTargetURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	for _, suffix := range targetHostSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
