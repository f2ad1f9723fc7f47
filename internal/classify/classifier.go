// Package classify maps file paths to categories and risk tiers.
//
// Classification is a pure function of the path string: deterministic,
// case-insensitive, and tolerant of unknown input. It is the leaf dependency
// for admission decisions, so it must never fail; unrecognized files fall
// back to a low-risk generic category.
package classify

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
)

// tierTable is the fixed category-to-tier mapping.
var tierTable = map[model.Category]model.RiskTier{
	model.CategoryEnv:              model.TierCritical,
	model.CategorySecretCandidates: model.TierCritical,
	model.CategoryMigrations:       model.TierCritical,
	model.CategoryInfrastructure:   model.TierHigh,
	model.CategoryCIConfig:         model.TierHigh,
	model.CategoryDependencies:     model.TierHigh,
	model.CategoryBuildConfig:      model.TierMedium,
	model.CategoryConfig:           model.TierMedium,
	model.CategorySource:           model.TierMedium,
	model.CategoryTest:             model.TierLow,
	model.CategoryDocumentation:    model.TierLow,
	model.CategoryGeneric:          model.TierLow,
}

// TierFor returns the risk tier for a category.
func TierFor(category model.Category) model.RiskTier {
	if tier, ok := tierTable[category]; ok {
		return tier
	}
	return model.TierLow
}

type rule struct {
	category  model.Category
	globs     []string
	basenames []string
	exts      []string
}

// Rules are ordered by specificity: the first match wins, so narrow
// categories (env, secrets, migrations) come before broad ones (config,
// source).
var rules = []rule{
	{
		category:  model.CategoryEnv,
		globs:     []string{"**/.env", "**/.env.*", "**/*.env"},
		basenames: []string{".env"},
	},
	{
		category: model.CategorySecretCandidates,
		globs: []string{
			"**/secrets/**", "**/*secret*", "**/credentials*",
			"**/id_rsa*", "**/*.pem", "**/*.key", "**/*.p12", "**/*.pfx",
		},
	},
	{
		category: model.CategoryMigrations,
		globs:    []string{"**/migrations/**", "**/migrate/**", "**/*.migration.*"},
	},
	{
		category: model.CategoryCIConfig,
		globs: []string{
			"**/.github/workflows/**", "**/.circleci/**", "**/.buildkite/**",
		},
		basenames: []string{".gitlab-ci.yml", ".travis.yml", "azure-pipelines.yml", "jenkinsfile"},
	},
	{
		category: model.CategoryDependencies,
		basenames: []string{
			"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
			"go.mod", "go.sum", "requirements.txt", "pipfile", "pipfile.lock",
			"poetry.lock", "cargo.toml", "cargo.lock", "composer.json",
			"composer.lock", "gemfile", "gemfile.lock",
		},
	},
	{
		category: model.CategoryInfrastructure,
		globs: []string{
			"**/terraform/**", "**/helm/**", "**/k8s/**", "**/kubernetes/**",
			"**/ansible/**",
		},
		exts: []string{".tf", ".tfvars"},
	},
	{
		category: model.CategoryBuildConfig,
		globs:    []string{"**/webpack.config.*", "**/vite.config.*", "**/rollup.config.*", "**/babel.config.*", "**/tsconfig*.json"},
		basenames: []string{
			"makefile", "dockerfile", "cmakelists.txt", "build.gradle",
			"pom.xml", "setup.py", "pyproject.toml", "docker-compose.yml",
			"docker-compose.yaml",
		},
	},
	{
		category: model.CategoryTest,
		globs: []string{
			"**/*.test.*", "**/*.spec.*", "**/*_test.go",
			"**/test/**", "**/tests/**", "**/__tests__/**",
		},
	},
	{
		category:  model.CategoryDocumentation,
		globs:     []string{"**/docs/**", "**/doc/**"},
		basenames: []string{"readme", "changelog", "contributing"},
		exts:      []string{".md", ".rst", ".adoc", ".txt"},
	},
	{
		category:  model.CategoryConfig,
		basenames: []string{".editorconfig", ".eslintrc", ".prettierrc"},
		exts:      []string{".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".properties"},
	},
	{
		category: model.CategorySource,
		exts: []string{
			".go", ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".py",
			".java", ".rb", ".rs", ".c", ".h", ".cc", ".cpp", ".hpp",
			".cs", ".php", ".swift", ".kt", ".scala", ".sh", ".bash",
			".sql", ".vue", ".svelte",
		},
	},
}

// Classify maps a path to its category and risk tier. Never fails: empty or
// unknown paths get a best-effort generic classification so callers can
// proceed.
func Classify(p string) model.FileClassification {
	normalized := pathutil.Normalize(p)
	matchable := strings.ToLower(normalized)

	category := model.CategoryGeneric
	if matchable != "" {
		category = categorize(matchable)
	}

	return model.FileClassification{
		Path:     normalized,
		Category: category,
		RiskTier: TierFor(category),
	}
}

func categorize(matchable string) model.Category {
	base := path.Base(matchable)
	ext := path.Ext(base)
	// A leading-dot name like ".env" has no extension, only a basename.
	if base == ext {
		ext = ""
	}
	baseNoExt := strings.TrimSuffix(base, ext)

	for _, r := range rules {
		for _, b := range r.basenames {
			if base == b || baseNoExt == b {
				return r.category
			}
		}
		for _, e := range r.exts {
			if ext == e {
				return r.category
			}
		}
		for _, g := range r.globs {
			// Rule globs are static; Match only errors on bad patterns.
			if ok, _ := doublestar.Match(g, matchable); ok {
				return r.category
			}
		}
	}
	return model.CategoryGeneric
}

// Patterns exposes the rule globs for validation.
func Patterns() []string {
	var out []string
	for _, r := range rules {
		out = append(out, r.globs...)
	}
	return out
}
