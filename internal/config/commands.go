package config

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/vilaca/pipeline-flow/internal/domain"
)

// commandsRecord is the YAML layout of scripts/actions/.pipeline.<prNumber>.yml.
type commandsRecord struct {
	CommandsPreDeploy  []domain.Command `yaml:"commandsPreDeploy"`
	CommandsPostDeploy []domain.Command `yaml:"commandsPostDeploy"`
}

// CommandCatalog attaches the pre/post deployment commands declared for a pull request.
type CommandCatalog struct {
	dir string
}

// NewCommandCatalog creates a catalog reading scripts/actions under the repository.
func NewCommandCatalog(repoDir string) *CommandCatalog {
	return &CommandCatalog{dir: filepath.Join(repoDir, "scripts", "actions")}
}

// CompleteCommands sets PreDeployCommands and PostDeployCommands in place.
// Pull requests without a command file are left unchanged; unreadable files
// are skipped and reported together.
func (c *CommandCatalog) CompleteCommands(ctx context.Context, prs []domain.PullRequest) error {
	var errs []error
	for i := range prs {
		if err := ctx.Err(); err != nil {
			return err
		}
		number := prs[i].DisplayNumber()
		if number == "" {
			continue
		}

		var rec commandsRecord
		found, err := readYAML(filepath.Join(c.dir, ".pipeline."+number+".yml"), &rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !found {
			continue
		}
		prs[i].PreDeployCommands = withCommand(rec.CommandsPreDeploy)
		prs[i].PostDeployCommands = withCommand(rec.CommandsPostDeploy)
	}
	return errors.Join(errs...)
}

// withCommand drops entries that have nothing to run.
func withCommand(commands []domain.Command) []domain.Command {
	var out []domain.Command
	for _, cmd := range commands {
		if cmd.Command != "" {
			out = append(out, cmd)
		}
	}
	return out
}
