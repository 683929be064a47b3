package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// adoflyMCPEntry is the MCP server configuration for the adofly binary.
var adoflyMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "adofly",
  "args": ["mcp"]
}`)

// starterConfig is written when the project has no adofly.yml yet. It runs
// offline until a real provider is configured.
const starterConfig = `# adofly configuration. Environment variables (ADOFLY_*, OPENAI_API_KEY)
# override these values.
server:
  addr: ":8080"
model:
  provider: stub   # openai | a2a | stub
  name: gpt-4o-mini
pipeline:
  concurrent: false
  stageTimeout: 90s
store:
  driver: memory   # memory | postgres
auth:
  disabled: true
logging:
  level: info
  format: text
`

// runInit writes a starter adofly.yml and registers the MCP server in the
// project's .mcp.json.
func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stdout)
	projectRoot := fs.String("project-root", ".", "path to the target project")
	force := fs.Bool("force", false, "overwrite existing files and entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	abs, err := filepath.Abs(*projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	configPath := filepath.Join(abs, "adofly.yml")
	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(stdout, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, configPath))
	} else {
		if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		fmt.Fprintf(stdout, "  created %s\n", dotRelative(abs, configPath))
	}

	if err := mergeMCPConfig(filepath.Join(abs, ".mcp.json"), *force, stdout); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "\nSetup complete. Run 'adofly serve' or connect an MCP client.")
	return nil
}

// mergeMCPConfig creates or merges the adofly entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool, stdout io.Writer) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["adofly"]; exists && !force {
		fmt.Fprintln(stdout, "  skipped .mcp.json adofly entry (exists, use --force to overwrite)")
		return nil
	}

	cfg.MCPServers["adofly"] = adoflyMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(stdout, "  %s .mcp.json with adofly MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
