package runner

import (
	"fmt"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// LanguageConfig describes how to check and run one language
type LanguageConfig struct {
	Language    domain.Language
	DockerImage string
	SourceFile  string
	// TypeCheck is optional; a failure with no recognizable diagnostics is
	// treated as a missing toolchain and skipped.
	TypeCheck []string
	Run       []string
	InitFiles map[string]string
}

// DefaultLanguageConfigs returns configurations for every supported language
func DefaultLanguageConfigs() map[domain.Language]LanguageConfig {
	return map[domain.Language]LanguageConfig{
		domain.LanguageTypeScript: {
			Language:    domain.LanguageTypeScript,
			DockerImage: "node:22-alpine",
			SourceFile:  "main.ts",
			TypeCheck:   []string{"npx", "--no-install", "tsc", "-p", "."},
			Run:         []string{"node", "--experimental-strip-types", "--no-warnings", "main.ts"},
			InitFiles: map[string]string{
				"package.json":  `{"type":"module"}`,
				"tsconfig.json": `{"compilerOptions":{"target":"ES2022","module":"ESNext","moduleResolution":"bundler","strict":true,"noEmit":true,"skipLibCheck":true,"allowImportingTsExtensions":true},"files":["main.ts"]}`,
			},
		},
		domain.LanguagePython: {
			Language:    domain.LanguagePython,
			DockerImage: "python:3.12-alpine",
			SourceFile:  "main.py",
			Run:         []string{"python3", "-B", "main.py"},
		},
	}
}

func lookupLanguage(configs map[domain.Language]LanguageConfig, lang domain.Language) (LanguageConfig, error) {
	if lang == "" {
		lang = domain.LanguageTypeScript
	}
	cfg, ok := configs[lang]
	if !ok {
		return LanguageConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return cfg, nil
}

// files returns the workspace contents for source
func (c LanguageConfig) files(source string) map[string]string {
	out := make(map[string]string, len(c.InitFiles)+1)
	for name, content := range c.InitFiles {
		out[name] = content
	}
	out[c.SourceFile] = source
	return out
}

// withTests appends test code to the learner's code so assertions run in
// the same module scope.
func withTests(code, testCode string) string {
	return code + "\n\n" + testCode + "\n"
}
