// ABOUTME: Command-line client for the toolbench tool management backend
// ABOUTME: Handles auth session commands and dispatches tool subcommands

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/client"
)

const banner = `
 _              _ _                     _
| |_ ___   ___ | | |__   ___ _ __   ___| |__
| __/ _ \ / _ \| | '_ \ / _ \ '_ \ / __| '_ \
| || (_) | (_) | | |_) |  __/ | | | (__| | | |
 \__\___/ \___/|_|_.__/ \___|_| |_|\___|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(args)
	case "register":
		err = cmdRegister(args)
	case "me":
		err = cmdMe()
	case "status":
		err = cmdStatus()
	case "logout":
		err = cmdLogout()
	case "tools":
		err = cmdTools(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: toolbench <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login [--email <email>]       Log in (prompts for password)")
	fmt.Println("  register                      Register a new account")
	fmt.Println("  me                            Show the logged-in user")
	fmt.Println("  status                        Show backend status and identity")
	fmt.Println("  logout                        Log out and clear stored tokens")
	fmt.Println("  tools                         List all tools")
	fmt.Println("  tools list                    List all tools")
	fmt.Println("  tools get <id>                Show one tool")
	fmt.Println("  tools create --file <path>    Create a tool from a JSON file")
	fmt.Println("  tools update <id> --file <p>  Update a tool from a JSON file")
	fmt.Println("  tools delete <id>             Delete a tool")
	fmt.Println("  tools enable <id>             Enable a tool")
	fmt.Println("  tools disable <id>            Disable a tool")
	fmt.Println("  tools import --file <path>    Import tools from a JSON array")
	fmt.Println("  tools export [--file <path>]  Export all tools as JSON")
	fmt.Println("  tools inheritable             List tools usable as inherit_from")
	fmt.Println("  tools exec <id> [--stream] [-p key=value]...")
	fmt.Println("                                Execute a tool")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TOOLBENCH_SERVER        Backend base URL (default: http://localhost:8080)")
	fmt.Println("  TOOLBENCH_USE_MOCK      Set to 1 to target the mock backend address")
	fmt.Println("  TOOLBENCH_CONFIG        Config file path (default: ~/.config/toolbench/config.toml)")
	fmt.Println("  TOOLBENCH_TOKEN_FILE    Token file path (default: ~/.config/toolbench/tokens.json)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  toolbench login --email admin@example.com")
	fmt.Println("  toolbench tools")
	fmt.Println("  toolbench tools exec 1 --stream -p query='SELECT 1'")
	fmt.Println()
}

// colorNotifier renders backend notifications with colored prefixes.
type colorNotifier struct{}

func (colorNotifier) Success(msg string) {
	color.Green("✓ %s\n", msg)
}

func (colorNotifier) Error(msg string) {
	color.Red("✗ %s\n", msg)
}

// newClient builds an API client from the CLI config with file-backed tokens.
func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tokenPath := cfg.Tokens.Path
	if tokenPath == "" {
		tokenPath, err = client.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("resolving token path: %w", err)
		}
	}

	return client.New(client.Config{
		BaseURL: cfg.baseURL(),
		Timeout: cfg.timeout(),
		Tokens:  client.NewFileStore(tokenPath),
		Notify:  colorNotifier{},
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stderr, "Run 'toolbench login' to start a new session.")
		},
	})
}

func newSession() (*client.Session, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	return client.NewSession(c), nil
}

// promptLine reads one trimmed line from stdin after printing the prompt.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// cmdLogin authenticates and stores the token pair.
func cmdLogin(args []string) error {
	var email string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		}
	}

	var err error
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	session, err := newSession()
	if err != nil {
		return err
	}

	if !session.Login(context.Background(), api.LoginRequest{Email: email, Password: password}) {
		os.Exit(1)
	}

	if user := session.User(); user != nil {
		green := color.New(color.FgGreen)
		green.Printf("✓ Logged in as %s\n", user.Username)
	}
	return nil
}

// cmdRegister creates a new account. Registration does not log in;
// the user logs in afterwards.
func cmdRegister(args []string) error {
	var email, username, fullName string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		case "--username", "-u":
			if i+1 < len(args) {
				username = args[i+1]
				i++
			}
		case "--name", "-n":
			if i+1 < len(args) {
				fullName = args[i+1]
				i++
			}
		}
	}

	var err error
	if username == "" {
		username, err = promptLine("Username: ")
		if err != nil {
			return err
		}
	}
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	session, err := newSession()
	if err != nil {
		return err
	}

	if !session.Register(context.Background(), api.UserCreate{
		Username: username,
		Email:    email,
		Password: password,
		FullName: fullName,
	}) {
		os.Exit(1)
	}
	return nil
}

// cmdMe shows the current user's identity.
func cmdMe() error {
	session, err := newSession()
	if err != nil {
		return err
	}

	user, err := session.CurrentUser(context.Background())
	if err != nil {
		return err
	}

	printIdentity(user)
	return nil
}

func printIdentity(user *api.User) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  Username:   %s\n", user.Username)
	fmt.Printf("  Email:      %s\n", user.Email)
	if user.FullName != "" {
		fmt.Printf("  Full Name:  %s\n", user.FullName)
	}
	if user.IsAdmin {
		green.Println("  Admin:      yes")
	}

	if len(user.Roles) > 0 {
		names := make([]string, 0, len(user.Roles))
		for _, r := range user.Roles {
			names = append(names, r.Name)
		}
		green.Printf("  Roles:      %s\n", strings.Join(names, ", "))
	} else {
		fmt.Printf("  Roles:      (none)\n")
	}
	fmt.Println()
}

// cmdStatus shows backend reachability, identity, and tool counts.
// The identity and tool list fetches run concurrently.
func cmdStatus() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("  Server:   %s\n", cfg.baseURL())

	c, err := newClient()
	if err != nil {
		return err
	}
	session := client.NewSession(c)
	if !session.IsAuthenticated() {
		yellow.Println("  Identity: (not logged in - run 'toolbench login')")
		fmt.Println()
		return nil
	}

	var (
		user  *api.User
		tools []api.ToolConfig
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		user, err = session.CurrentUser(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		tools, err = client.NewTools(c).List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		yellow.Printf("  Identity: ")
		color.Red("unavailable (%v)\n", err)
		fmt.Println()
		return nil
	}

	green.Printf("  Identity: ")
	fmt.Printf("%s (%s)\n", user.Username, user.Email)

	active := 0
	for _, t := range tools {
		if t.IsActive {
			active++
		}
	}
	green.Printf("  Tools:    ")
	fmt.Printf("%d total, %d active\n", len(tools), active)
	fmt.Println()
	return nil
}

// cmdLogout clears the stored session.
func cmdLogout() error {
	session, err := newSession()
	if err != nil {
		return err
	}
	session.Logout(context.Background())
	return nil
}
