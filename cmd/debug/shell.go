package debug

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cosiner/argv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/minidbg/pkg/session"
)

const (
	cmdGroupAnnotation = "cmd_group_annotation"

	cmdGroupBreakpoints = "1-breaks"
	cmdGroupSource      = "2-source"
	cmdGroupCtrlFlow    = "3-execute"
	cmdGroupInfo        = "4-info"
	cmdGroupOthers      = "5-other"
	cmdGroupCobra       = "other"

	cmdGroupDelimiter = "-"

	prefix    = "minidbg> "
	descShort = "minidbg interactive debugging commands"
)

const (
	// BuildExecName binary built and removed again by the debug command
	BuildExecName = "./__debug_bin__"

	defaultHistoryFile = ".minidbg_history"
)

var debugRootCmd = &cobra.Command{
	Use:   "help [command]",
	Short: descShort,
}

var (
	// CurrentSession the session all debug commands operate on
	CurrentSession *session.Session

	// CurrentShell the running interactive shell
	CurrentShell *Shell
)

// Shell reads debugger commands, with line editing, tab completion and
// persistent history, and dispatches them against the current session.
type Shell struct {
	done    chan bool
	prefix  string
	root    *cobra.Command
	liner   *liner.State
	last    string
	history string

	defers []func()
}

// NewShell creates the interactive manager for the debug commands.
func NewShell() *Shell {
	fn := func(cmd *cobra.Command, args []string) {
		// description
		fmt.Println(cmd.Short)
		fmt.Println()

		// usage
		fmt.Println(cmd.Use)
		fmt.Println(cmd.Flags().FlagUsages())

		// commands by group
		usage := helpMessageByGroups(cmd)
		fmt.Println(usage)
	}
	debugRootCmd.SetHelpFunc(fn)

	history := viper.GetString("history.file")
	if history == "" {
		history = defaultHistoryFile
	}
	if home, err := homedir.Dir(); err == nil {
		history = filepath.Join(home, history)
	}

	s := &Shell{
		done:    make(chan bool),
		prefix:  prefix,
		root:    debugRootCmd,
		liner:   liner.NewLiner(),
		history: history,
	}
	CurrentShell = s
	return s
}

// Start runs the command loop until exit or EOF.
func (s *Shell) Start() {
	s.liner.SetCompleter(completer)
	s.liner.SetTabCompletionStyle(liner.TabPrints)
	s.loadHistory()

	defer func() {
		for idx := len(s.defers) - 1; idx >= 0; idx-- {
			s.defers[idx]()
		}
	}()
	defer s.saveHistory()
	defer s.liner.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		txt, err := s.liner.Prompt(s.prefix)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println(`Type "exit" to end the session`)
				continue
			}
			if err == io.EOF {
				// ctrl-d behaves like exit
				if CurrentSession.Quit(s.quitConfirm) {
					return
				}
				continue
			}
			panic(err)
		}

		txt = strings.TrimSpace(txt)
		if len(txt) != 0 {
			s.last = txt
			s.liner.AppendHistory(txt)
		} else {
			txt = s.last
		}
		if txt == "" {
			continue
		}

		args, err := tokenize(txt)
		if err != nil {
			fmt.Printf("parse command: %v\n", err)
			continue
		}
		s.root.SetArgs(args)
		s.root.Execute()
	}
}

// AtExit registers fn to run when the shell ends.
func (s *Shell) AtExit(fn func()) *Shell {
	s.defers = append(s.defers, fn)
	return s
}

// Stop ends the command loop.
func (s *Shell) Stop() {
	close(s.done)
}

// Confirm asks a yes/no question, re-prompting on empty or unrecognized
// input.
func (s *Shell) Confirm(question string) bool {
	p := question
	for {
		txt, err := s.liner.Prompt(p)
		if err != nil {
			p = "Please type (y/n) "
			continue
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		s.liner.AppendHistory(txt)
		switch strings.ToLower(strings.Fields(txt)[0]) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Println("Unrecognized command.")
			p = "Please type (y/n) "
		}
	}
}

func (s *Shell) quitConfirm() bool {
	return s.Confirm("Quit anyway? (y or n) ")
}

// tokenize splits a command line, keeping quoted arguments intact so that
// `run "hello world"` passes a single argument to the target.
func tokenize(txt string) ([]string, error) {
	v, err := argv.Argv(txt, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in '%s'", s)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", txt)
	}
	return v[0], nil
}

func (s *Shell) loadHistory() {
	f, err := os.Open(s.history)
	if err != nil {
		return
	}
	defer f.Close()
	s.liner.ReadHistory(f)
}

func (s *Shell) saveHistory() {
	f, err := os.Create(s.history)
	if err != nil {
		fmt.Printf("Warning: failed to save history file at %s: %v\n", s.history, err)
		return
	}
	defer f.Close()
	if _, err = s.liner.WriteHistory(f); err != nil {
		fmt.Printf("Warning: failed to save history file at %s: %v\n", s.history, err)
	}
}

func completer(line string) []string {
	cmds := []string{}
	for _, c := range debugRootCmd.Commands() {
		// complete cmd
		if strings.HasPrefix(c.Use, line) {
			cmds = append(cmds, strings.Split(c.Use, " ")[0])
		}
		// complete cmd's aliases
		for _, alias := range c.Aliases {
			if strings.HasPrefix(alias, line) {
				cmds = append(cmds, alias)
			}
		}
	}
	return cmds
}

// helpMessageByGroups 将各个命令按照分组归类，再展示帮助信息
func helpMessageByGroups(cmd *cobra.Command) string {

	// key:group, val:sorted commands in same group
	groups := map[string][]string{}
	for _, c := range cmd.Commands() {
		// 如果没有指定命令分组，放入other组
		var groupName string
		v, ok := c.Annotations[cmdGroupAnnotation]
		if !ok {
			groupName = "other"
		} else {
			groupName = v
		}

		groupCmds, ok := groups[groupName]
		groupCmds = append(groupCmds, fmt.Sprintf("  %-16s:%s", c.Name(), c.Short))
		sort.Strings(groupCmds)

		groups[groupName] = groupCmds
	}

	if len(groups[cmdGroupCobra]) != 0 {
		groups[cmdGroupOthers] = append(groups[cmdGroupOthers], groups[cmdGroupCobra]...)
	}
	delete(groups, cmdGroupCobra)

	// 按照分组名进行排序
	groupNames := []string{}
	for k := range groups {
		groupNames = append(groupNames, k)
	}
	sort.Strings(groupNames)

	// 按照group分组，并对组内命令进行排序
	buf := bytes.Buffer{}
	for _, groupName := range groupNames {
		commands := groups[groupName]

		group := strings.Split(groupName, cmdGroupDelimiter)[1]
		buf.WriteString(fmt.Sprintf("- [%s]\n", group))

		for _, cmd := range commands {
			buf.WriteString(fmt.Sprintf("%s\n", cmd))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
