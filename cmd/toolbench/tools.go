// ABOUTME: Tool management subcommands for the toolbench CLI
// ABOUTME: Covers list/get/create/update/delete, toggling, import/export, execution

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/client"
)

// cmdTools dispatches tools subcommands.
func cmdTools(args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	tools, err := newTools()
	if err != nil {
		return err
	}

	switch subcmd {
	case "list", "ls":
		return cmdToolsList(tools)
	case "get", "show":
		return cmdToolsGet(tools, args)
	case "create", "add":
		return cmdToolsCreate(tools, args)
	case "update":
		return cmdToolsUpdate(tools, args)
	case "delete", "rm", "remove":
		return cmdToolsDelete(tools, args)
	case "enable":
		return cmdToolsToggle(tools, args, true)
	case "disable":
		return cmdToolsToggle(tools, args, false)
	case "import":
		return cmdToolsImport(tools, args)
	case "export":
		return cmdToolsExport(tools, args)
	case "inheritable":
		return cmdToolsInheritable(tools)
	case "exec", "run":
		return cmdToolsExec(tools, args)
	default:
		return fmt.Errorf("unknown tools subcommand: %s (use list, get, create, update, delete, enable, disable, import, export, inheritable, exec)", subcmd)
	}
}

func newTools() (*client.Tools, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	return client.NewTools(c), nil
}

// parseID parses a positive numeric tool ID argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tool id: %s", s)
	}
	return id, nil
}

// fileArg extracts a --file/-f value from args.
func fileArg(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file", "-f":
			if i+1 < len(args) {
				return args[i+1]
			}
		}
	}
	return ""
}

// cmdToolsList lists all tools in a table.
func cmdToolsList(tools *client.Tools) error {
	list, err := tools.List(context.Background())
	if err != nil {
		return err
	}
	printToolTable("Tools", list)
	return nil
}

func printToolTable(title string, list []api.ToolConfig) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  %s\n", title)
	cyan.Printf("  %s\n", strings.Repeat("-", len(title)))

	if len(list) == 0 {
		fmt.Println("  (no tools)")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tACTIVE\tPARAMS\tDESCRIPTION\tUPDATED")
	fmt.Fprintln(w, "  --\t----\t------\t------\t-----------\t-------")

	for _, t := range list {
		active := "no"
		if t.IsActive {
			active = "yes"
		}
		updated := ""
		if !t.UpdatedAt.IsZero() {
			updated = t.UpdatedAt.Format("Jan 02 15:04")
		}
		desc := truncate(t.Description, 40)
		fmt.Fprintf(w, "  %d\t%s\t%s\t%d\t%s\t%s\n", t.ID, t.Name, active, len(t.Parameters), desc, updated)
	}
	w.Flush()
	fmt.Println()
}

// truncate shortens s to maxLen runes; byte slicing would split multibyte
// characters in the Chinese descriptions.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// cmdToolsGet shows one tool in detail.
func cmdToolsGet(tools *client.Tools, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tools get <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	tool, err := tools.Get(context.Background(), id)
	if err != nil {
		return err
	}
	if tool == nil {
		return fmt.Errorf("tool %d not found", id)
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Printf("  %s\n", tool.Name)
	cyan.Printf("  %s\n", strings.Repeat("-", len(tool.Name)))
	fmt.Printf("  ID:           %d\n", tool.ID)
	fmt.Printf("  Description:  %s\n", tool.Description)
	if tool.IsActive {
		green.Println("  Active:       yes")
	} else {
		fmt.Println("  Active:       no")
	}
	if tool.InheritFrom != "" {
		fmt.Printf("  Inherits:     %s\n", tool.InheritFrom)
	}
	if !tool.CreatedAt.IsZero() {
		fmt.Printf("  Created:      %s\n", tool.CreatedAt.Format(time.RFC3339))
	}

	if len(tool.Parameters) > 0 {
		fmt.Println()
		cyan.Println("  Parameters")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
		for _, p := range tool.Parameters {
			required := ""
			if p.Required {
				required = "yes"
			}
			def := ""
			if p.Default != nil {
				def = fmt.Sprintf("%v", p.Default)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", p.Name, p.Type, required, def, truncate(p.Description, 40))
		}
		w.Flush()
	}

	if tool.Code != "" {
		fmt.Println()
		cyan.Println("  Code")
		for _, line := range strings.Split(tool.Code, "\n") {
			fmt.Printf("  %s\n", line)
		}
	}
	fmt.Println()
	return nil
}

// readToolFile loads a single tool definition from a JSON file.
func readToolFile(path string) (*api.ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var tool api.ToolConfig
	if err := json.Unmarshal(data, &tool); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &tool, nil
}

// cmdToolsCreate creates a tool from a JSON definition file.
func cmdToolsCreate(tools *client.Tools, args []string) error {
	path := fileArg(args)
	if path == "" {
		return fmt.Errorf("usage: tools create --file <path>")
	}
	tool, err := readToolFile(path)
	if err != nil {
		return err
	}

	res, err := tools.Create(context.Background(), *tool)
	if err != nil {
		return err
	}
	if res.Tool != nil {
		fmt.Printf("  ID: %d\n", res.Tool.ID)
	}
	return nil
}

// cmdToolsUpdate updates a tool from a JSON definition file.
func cmdToolsUpdate(tools *client.Tools, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tools update <id> --file <path>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	path := fileArg(args[1:])
	if path == "" {
		return fmt.Errorf("usage: tools update <id> --file <path>")
	}
	tool, err := readToolFile(path)
	if err != nil {
		return err
	}

	_, err = tools.Update(context.Background(), id, *tool)
	return err
}

// cmdToolsDelete deletes a tool by ID.
func cmdToolsDelete(tools *client.Tools, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tools delete <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	_, err = tools.Delete(context.Background(), id)
	return err
}

// cmdToolsToggle enables or disables a tool.
func cmdToolsToggle(tools *client.Tools, args []string, active bool) error {
	verb := "enable"
	if !active {
		verb = "disable"
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: tools %s <id>", verb)
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	_, err = tools.ToggleActive(context.Background(), id, active)
	return err
}

// cmdToolsImport imports tools from a JSON array file.
func cmdToolsImport(tools *client.Tools, args []string) error {
	path := fileArg(args)
	if path == "" {
		return fmt.Errorf("usage: tools import --file <path>")
	}
	defs, err := client.ParseToolsFile(path)
	if err != nil {
		return err
	}

	_, err = tools.Import(context.Background(), defs)
	return err
}

// cmdToolsExport exports all tools as JSON to stdout or a file.
func cmdToolsExport(tools *client.Tools, args []string) error {
	data, err := tools.Export(context.Background())
	if err != nil {
		return err
	}

	path := fileArg(args)
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	green := color.New(color.FgGreen)
	green.Printf("✓ Exported to %s\n", path)
	return nil
}

// cmdToolsInheritable lists tools that can be named in inherit_from.
func cmdToolsInheritable(tools *client.Tools) error {
	list, err := tools.Inheritable(context.Background())
	if err != nil {
		return err
	}
	printToolTable("Inheritable Tools", list)
	return nil
}

// cmdToolsExec executes a tool, optionally streaming progress events.
func cmdToolsExec(tools *client.Tools, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tools exec <id> [--stream] [-p key=value]...")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	args = args[1:]

	stream := false
	params := map[string]any{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--stream", "-s":
			stream = true
		case "--param", "-p":
			if i+1 < len(args) {
				key, value, err := parseParam(args[i+1])
				if err != nil {
					return err
				}
				params[key] = value
				i++
			}
		}
	}

	if stream {
		return execStream(tools, id, params)
	}
	return execOnce(tools, id, params)
}

// parseParam splits key=value, decoding the value as JSON when it parses.
// Unquoted values fall back to plain strings.
func parseParam(arg string) (string, any, error) {
	key, raw, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid parameter %q (expected key=value)", arg)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return key, value, nil
}

// execOnce runs a tool and prints its result.
func execOnce(tools *client.Tools, id int64, params map[string]any) error {
	res, err := tools.Execute(context.Background(), id, params)
	if err != nil {
		return err
	}

	if !res.Success {
		return fmt.Errorf("execution failed: %s", res.Error)
	}

	green := color.New(color.FgGreen)
	green.Println("✓ Execution succeeded")
	if res.ExecutionTime != "" {
		fmt.Printf("  Duration: %s\n", res.ExecutionTime)
	}
	printResult(res.Result)
	return nil
}

// execStream runs a tool over SSE, printing events as they arrive.
func execStream(tools *client.Tools, id int64, params map[string]any) error {
	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)

	var execErr error
	s, err := tools.ExecuteStream(context.Background(), id, params, func(event string, data any) {
		switch event {
		case "progress":
			if m, ok := data.(map[string]any); ok {
				if msg, ok := m["message"].(string); ok {
					dim.Printf("  %s\n", msg)
					return
				}
			}
			dim.Printf("  %v\n", data)
		case "result":
			green.Println("✓ Result:")
			printResult(data)
		case "complete":
			// terminal event, nothing to print
		case "error":
			if m, ok := data.(map[string]any); ok {
				if msg, ok := m["message"].(string); ok {
					execErr = fmt.Errorf("execution failed: %s", msg)
					return
				}
			}
			execErr = fmt.Errorf("execution failed: %v", data)
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	<-s.Done()
	if err := s.Err(); err != nil {
		return err
	}
	return execErr
}

// printResult pretty-prints an execution result payload.
func printResult(result any) {
	if result == nil {
		return
	}
	if s, ok := result.(string); ok {
		fmt.Printf("  %s\n", s)
		return
	}
	data, err := json.MarshalIndent(result, "  ", "  ")
	if err != nil {
		fmt.Printf("  %v\n", result)
		return
	}
	fmt.Printf("  %s\n", data)
}
