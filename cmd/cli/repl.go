package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/nickyhof/ShopQL"
	"github.com/nickyhof/ShopQL/db"
	"github.com/nickyhof/ShopQL/store"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Border(lipgloss.DoubleBorder()).
			Padding(0, 3).
			Align(lipgloss.Center)
)

const maxHistory = 1000

// CLI holds the console state
type CLI struct {
	instance    *ShopQL.Instance
	engine      *db.Engine
	out         io.Writer
	history     []string
	historyFile string
}

func NewCLI(instance *ShopQL.Instance, out io.Writer) *CLI {
	return &CLI{
		instance: instance,
		engine:   instance.Engine(),
		out:      out,
		history:  make([]string, 0),
	}
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bannerStyle.Render(fmt.Sprintf("ShopQL v%s\nStorefront Admin Query Console", Version)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type .help for commands, .quit to exit")
	fmt.Fprintln(w)
}

var errQuit = errors.New("quit")

func (cli *CLI) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(cli.complete)

	cli.loadHistory(line)
	defer cli.saveHistory(line)

	var multiLineBuffer strings.Builder
	for {
		input, err := line.Prompt(cli.getPrompt(multiLineBuffer.Len() > 0))
		if errors.Is(err, liner.ErrPromptAborted) {
			multiLineBuffer.Reset()
			continue
		}
		if err != nil {
			fmt.Fprintln(cli.out, successStyle.Render("\nGoodbye!"))
			return nil
		}

		statement, complete := cli.accumulate(&multiLineBuffer, input)
		if !complete {
			continue
		}

		if strings.HasPrefix(statement, ".") {
			line.AppendHistory(statement)
			if err := cli.handleCommand(ctx, statement); errors.Is(err, errQuit) {
				fmt.Fprintln(cli.out, successStyle.Render("Goodbye!"))
				return nil
			}
			continue
		}

		line.AppendHistory(statement + ";")
		cli.addToHistory(statement + ";")
		cli.execute(ctx, statement)
	}
}

// accumulate adds input to buf and reports a complete statement once it
// ends with a semicolon. Dot-commands are complete on their own line.
func (cli *CLI) accumulate(buf *strings.Builder, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}

	if buf.Len() == 0 && strings.HasPrefix(input, ".") {
		return input, true
	}

	buf.WriteString(input)
	trimmed := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(trimmed, ";") {
		buf.WriteString(" ")
		return "", false
	}
	buf.Reset()

	statement := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	return statement, statement != ""
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return "  ...> "
	}
	return "shopql> "
}

// execute runs one query and renders its result or error.
func (cli *CLI) execute(ctx context.Context, query string) error {
	result, err := cli.engine.Execute(ctx, query)
	if err != nil {
		fmt.Fprintln(cli.out, errorStyle.Render("✗ Error: "+err.Error()))
		return err
	}
	result.Render(cli.out)
	return nil
}

func (cli *CLI) handleCommand(ctx context.Context, input string) error {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return nil
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		return errQuit

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		cli.execute(ctx, "SHOW TABLES")

	case ".schema":
		if len(parts) > 1 {
			cli.execute(ctx, "DESCRIBE "+parts[1])
		} else {
			fmt.Fprintln(cli.out, errorStyle.Render("✗ Usage: .schema <table>"))
		}

	case ".stats":
		cli.printStats(ctx)

	case ".run":
		if len(parts) > 1 {
			if _, err := cli.runFile(ctx, parts[1]); err != nil {
				fmt.Fprintln(cli.out, errorStyle.Render("✗ Error: "+err.Error()))
			}
		} else {
			fmt.Fprintln(cli.out, errorStyle.Render("✗ Usage: .run <file.sql>"))
		}

	case ".clear", ".cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".log":
		cli.printLog()

	case ".version":
		fmt.Fprintf(cli.out, "ShopQL version %s\n", Version)

	default:
		fmt.Fprintln(cli.out, errorStyle.Render(
			fmt.Sprintf("✗ Unknown command: %s (type .help for commands)", parts[0])))
	}

	return nil
}

func (cli *CLI) printHelp() {
	w := cli.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Special Commands:"))
	fmt.Fprintln(w, "  .help, .h        Show this help message")
	fmt.Fprintln(w, "  .quit, .exit     Exit the console")
	fmt.Fprintln(w, "  .tables          List tables with record counts")
	fmt.Fprintln(w, "  .schema <table>  Show the columns of a table")
	fmt.Fprintln(w, "  .stats           Show database statistics")
	fmt.Fprintln(w, "  .run <file>      Execute queries from a file")
	fmt.Fprintln(w, "  .history         Show command history")
	fmt.Fprintln(w, "  .log             Show the git store's commit log")
	fmt.Fprintln(w, "  .clear           Clear the screen")
	fmt.Fprintln(w, "  .version         Show version info")
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Queries (end with ;):"))
	fmt.Fprintln(w, "  SELECT * | col, ... | AGG(col) [AS alias] FROM <table>")
	io.WriteString(w, "      [WHERE col =|>|<|>=|<= value | col LIKE '%text%']\n")
	fmt.Fprintln(w, "      [GROUP BY col] [ORDER BY col [ASC|DESC]] [LIMIT n];")
	fmt.Fprintln(w, "  DESCRIBE <table>;")
	fmt.Fprintln(w, "  SHOW TABLES;")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s COUNT(*), COUNT(col), SUM(col), AVG(col)\n", headingStyle.Render("Aggregates:"))
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render("Tables:"), strings.Join(cli.engine.Catalog().TableNames(), ", "))
	fmt.Fprintln(w)
}

func (cli *CLI) printStats(ctx context.Context) {
	stats, err := cli.instance.Stats(ctx)
	if err != nil {
		fmt.Fprintln(cli.out, errorStyle.Render("✗ Error: "+err.Error()))
		return
	}

	fmt.Fprintln(cli.out, headingStyle.Render("Database Statistics"))
	for _, count := range stats.Tables {
		fmt.Fprintf(cli.out, "  %-12s %d\n", count.Table, count.Records)
	}
	fmt.Fprintf(cli.out, "  %-12s %d\n", "total", stats.Total)
}

// printLog lists the imports recorded by a git store, newest first.
func (cli *CLI) printLog() {
	gitStore, ok := cli.instance.Store.(*store.GitStore)
	if !ok {
		fmt.Fprintln(cli.out, "No commit log: the current store does not keep history.")
		return
	}

	transactions := gitStore.History(time.Time{})
	if len(transactions) == 0 {
		fmt.Fprintln(cli.out, "No commits yet.")
		return
	}
	for _, transaction := range transactions {
		fmt.Fprintln(cli.out, transaction)
	}
}

// complete offers keywords, dot-commands and table names.
func (cli *CLI) complete(line string) []string {
	words := []string{"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "LIKE",
		"COUNT(*)", "SUM(", "AVG(", "DESCRIBE", "SHOW TABLES", "ASC", "DESC",
		".help", ".tables", ".schema", ".stats", ".history", ".log", ".quit"}
	words = append(words, cli.engine.Catalog().TableNames()...)

	head := ""
	last := line
	if i := strings.LastIndexAny(line, " \t"); i >= 0 {
		head, last = line[:i+1], line[i+1:]
	}
	if last == "" {
		return nil
	}

	var out []string
	for _, word := range words {
		if strings.HasPrefix(strings.ToLower(word), strings.ToLower(last)) {
			out = append(out, head+word)
		}
	}
	return out
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".shopql_history")
}

func (cli *CLI) loadHistory(line *liner.State) {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	line.ReadHistory(file)
}

func (cli *CLI) saveHistory(line *liner.State) {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	line.WriteHistory(file)
}

// runFile executes every ;-separated query in filename and returns the
// number that failed.
func (cli *CLI) runFile(ctx context.Context, filename string) (int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	successCount := 0
	errorCount := 0

	for i, stmt := range splitStatements(string(data)) {
		result, err := cli.engine.Execute(ctx, stmt)
		if err != nil {
			fmt.Fprintln(cli.out, errorStyle.Render(fmt.Sprintf("[%d] ✗ %s", i+1, truncate(stmt, 50))))
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			errorCount++
			continue
		}

		successCount++
		fmt.Fprintln(cli.out, successStyle.Render(
			fmt.Sprintf("[%d] ✓ %s (%d rows)", i+1, truncate(stmt, 50), result.RowCount)))
		result.Render(cli.out)
	}

	fmt.Fprintln(cli.out, successStyle.Render(
		fmt.Sprintf("\n✓ Run complete: %d succeeded, %d failed", successCount, errorCount)))

	return errorCount, nil
}

// splitStatements splits query text into individual statements. Semicolons
// inside quotes and -- comments are ignored.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if ch == '\'' || ch == '"' {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
