package supervisor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
)

func bootTerminal(t *testing.T, perms terminal.Permissions) (*harness, *terminal.Terminal) {
	t.Helper()
	h := newHarness(t, func(o *Options) {
		o.Terminal = true
		o.Permissions = perms
	})
	require.NoError(t, h.reg.Bootstrap())
	h.reg.Register(&service.Func{ServiceKey: "NET", ServiceName: "Network"})
	term, err := h.reg.Terminal()
	require.NoError(t, err)
	return h, term
}

func TestServiceCommand_SingleService(t *testing.T) {
	h, term := bootTerminal(t, nil)

	term.Dispatch("service status network")
	assert.Contains(t, h.out.String(), "Service status is: INACTIVE!")

	term.Dispatch("service time Network")
	assert.Contains(t, h.out.String(), "Service is not running!")

	term.Dispatch("service START Network")
	assert.True(t, h.reg.IsRunning("NET"))
	assert.Contains(t, h.out.String(), "Service is now started!")

	term.Dispatch("service start Network")
	assert.Contains(t, h.out.String(), "cannot start service NET: already running")

	term.Dispatch("service time Network")
	assert.Contains(t, h.out.String(), "Service has been online since: ")

	term.Dispatch("service forcestop Network")
	assert.False(t, h.reg.IsRunning("NET"))
	assert.Contains(t, h.out.String(), "Service is now stopped!")

	term.Dispatch("service status Nowhere")
	assert.Contains(t, h.out.String(), "No service with name: Nowhere!")

	term.Dispatch("service reboot Network")
	assert.Contains(t, h.out.String(), "Could not find sub-command: reboot!")
}

func TestServiceCommand_WrongUsage(t *testing.T) {
	h, term := bootTerminal(t, nil)
	term.Dispatch("service")
	term.Dispatch("service a b c")
	assert.Equal(t, 2, strings.Count(h.out.String(), "Wrong usage! Try: service <start, stop, forcestop, time, status, list> <service>"))
}

func TestServiceCommand_List(t *testing.T) {
	h, term := bootTerminal(t, nil)
	term.Dispatch("service list")

	out := h.out.String()
	assert.Contains(t, out, "Here is a list of all registered services:")
	var mainLine, netLine string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "] MAIN "):
			mainLine = line
		case strings.Contains(line, "] NET "):
			netLine = line
		}
	}
	require.NotEmpty(t, mainLine)
	require.NotEmpty(t, netLine)
	assert.Contains(t, mainLine, "ACTIVE")
	assert.Contains(t, netLine, "INACTIVE")
	// bootstrap goroutine and terminal worker
	assert.Contains(t, mainLine, " 2 ")
}

func TestServiceCommand_BulkStartStop(t *testing.T) {
	h, term := bootTerminal(t, nil)
	done := h.reg.Main().Done()

	term.Dispatch("service start")
	assert.True(t, h.reg.IsRunning("NET"))

	term.Dispatch("service stop")
	assert.False(t, h.reg.IsRunning("NET"))
	assert.False(t, h.reg.IsRunning(MainKey))
	select {
	case <-done:
	default:
		t.Fatal("main service done channel not closed")
	}
}

func TestServiceCommand_Permissions(t *testing.T) {
	h, term := bootTerminal(t, terminal.PermissionSet{PermRegistry, PermStatus, PermHelp})

	term.Dispatch("service start Network")
	assert.False(t, h.reg.IsRunning("NET"))
	assert.Contains(t, h.out.String(), "Access denied! If you think this is a mistake")

	term.Dispatch("service status Network")
	assert.Contains(t, h.out.String(), "Service status is: INACTIVE!")

	term.Dispatch("exit")
	assert.Contains(t, h.out.String(), "Access denied! Required permission:\n"+PermExit)
}

func TestHelpCommand(t *testing.T) {
	h, term := bootTerminal(t, nil)
	term.Dispatch("help")
	out := h.out.String()
	assert.Contains(t, out, "Here is a list of all commands:")
	assert.Contains(t, out, "\t# exit")
	assert.Contains(t, out, "\t# help <page>")
	assert.Contains(t, out, "Page 1/1.")

	for i := 0; i < 10; i++ {
		require.NoError(t, h.reg.RegisterCommand(&stubCommand{name: fmt.Sprintf("cmd%02d", i)}))
	}
	term.Dispatch("help 1")
	assert.Contains(t, h.out.String(), "Page 1/2. Try 'help 2' for more.")
	term.Dispatch("help 2")
	assert.Contains(t, h.out.String(), "Page 2/2.")

	term.Dispatch("help 3")
	term.Dispatch("help zero")
	assert.Equal(t, 2, strings.Count(h.out.String(), "Wrong usage! Try: help <page>"))
}

func TestExitCommand(t *testing.T) {
	h, term := bootTerminal(t, nil)
	term.Dispatch("exit")
	assert.Contains(t, h.out.String(), `The exit command does not work. Try "service stop" instead.`)
	assert.True(t, h.reg.IsRunning(MainKey))
}
