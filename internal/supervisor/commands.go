package supervisor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/lifecycle"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
)

const helpPageSize = 10

// serviceCommand drives the lifecycle from the terminal:
//
//	service <start|stop|forcestop|time|status> <name>
//	service <start|stop|list>
type serviceCommand struct{ reg *Registry }

func (c *serviceCommand) Name() string       { return "service" }
func (c *serviceCommand) Permission() string { return PermRegistry }

func (c *serviceCommand) Usage() string {
	return "service <start, stop, forcestop, time, status, list> <service>"
}

func (c *serviceCommand) Execute(p terminal.Permissions, args []string) bool {
	switch len(args) {
	case 1:
		c.bulk(p, strings.ToLower(args[0]))
		return true
	case 2:
		c.single(p, strings.ToLower(args[0]), args[1])
		return true
	}
	return false
}

func (c *serviceCommand) bulk(p terminal.Permissions, sub string) {
	log := c.reg.log
	switch sub {
	case "start":
		if !p.HasPermission(PermStart) {
			c.reg.NoPermission()
			return
		}
		log.Info("Starting all services")
		c.reg.StartAll()
	case "stop":
		if !p.HasPermission(PermStop) {
			c.reg.NoPermission()
			return
		}
		log.Info("Stopping all services")
		c.reg.StopAll()
	case "list":
		if !p.HasPermission(PermList) {
			c.reg.NoPermission()
			return
		}
		log.Info("Here is a list of all registered services:")
		for _, line := range terminal.TableLines(serviceTable(c.reg)) {
			log.Info(line)
		}
	default:
		log.Warning("Could not find sub-command: " + sub + "!")
	}
}

func (c *serviceCommand) single(p terminal.Permissions, sub, name string) {
	log := c.reg.log
	svc, ok := c.reg.dir.FindByName(name)
	if !ok {
		log.Warning("No service with name: " + name + "!")
		return
	}
	key := svc.Key()

	var (
		perm string
		run  func()
	)
	switch sub {
	case "start":
		perm, run = PermStart, func() {
			if _, err := c.reg.Start(key); err != nil {
				log.Warning(err.Error())
				return
			}
			log.Info("Service is now started!")
		}
	case "stop", "forcestop":
		perm, run = PermStop, func() {
			stop := c.reg.Stop
			if sub == "forcestop" {
				stop = c.reg.ForceStop
			}
			if _, err := stop(key); err != nil {
				log.Warning(err.Error())
				return
			}
			log.Info("Service is now stopped!")
		}
	case "time":
		perm, run = PermTime, func() {
			ot := c.reg.OnlineTime(key)
			if ot == lifecycle.NotRunning {
				log.Info("Service is not running!")
				return
			}
			since := time.UnixMilli(ot)
			log.Infof("Service has been online since: %s (%s)",
				since.Format(time.DateTime), time.Since(since).Truncate(time.Second))
		}
	case "status":
		perm, run = PermStatus, func() {
			log.Info("Service status is: " + stateLabel(c.reg.IsRunning(key)) + "!")
		}
	default:
		log.Warning("Could not find sub-command: " + sub + "!")
		return
	}
	if !p.HasPermission(perm) {
		c.reg.NoPermission()
		return
	}
	run()
}

func stateLabel(running bool) string {
	if running {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// serviceTable renders the registered services sorted by key.
func serviceTable(reg *Registry) ([]string, [][]string) {
	svcs := reg.Services()
	service.SortByKey(svcs)
	rows := make([][]string, 0, len(svcs))
	for _, s := range svcs {
		running := reg.IsRunning(s.Key())
		workers, since := "-", "-"
		if running {
			workers = strconv.Itoa(len(s.Workers()))
			since = time.UnixMilli(reg.OnlineTime(s.Key())).Format(time.DateTime)
		}
		rows = append(rows, []string{string(s.Key()), s.Name(), stateLabel(running), workers, since})
	}
	return []string{"Key", "Name", "State", "Workers", "Since"}, rows
}

// helpCommand lists the terminal commands, ten per page.
type helpCommand struct{ reg *Registry }

func (c *helpCommand) Name() string       { return "help" }
func (c *helpCommand) Usage() string      { return "help <page>" }
func (c *helpCommand) Permission() string { return PermHelp }

func (c *helpCommand) Execute(_ terminal.Permissions, args []string) bool {
	if len(args) > 1 {
		return false
	}
	page := 1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return false
		}
		page = n
	}
	t, err := c.reg.Terminal()
	if err != nil {
		return true
	}
	cmds := t.Executor().Commands()
	pages := int(math.Ceil(float64(len(cmds)) / helpPageSize))
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		return false
	}

	log := c.reg.log
	log.Info("Here is a list of all commands:")
	end := min(page*helpPageSize, len(cmds))
	for _, cmd := range cmds[(page-1)*helpPageSize : end] {
		log.Info("\t# " + cmd.Usage())
	}
	more := ""
	if page < pages {
		more = fmt.Sprintf(" Try 'help %d' for more.", page+1)
	}
	log.Infof("Page %d/%d.%s", page, pages, more)
	return true
}

// exitCommand only points at "service stop".
type exitCommand struct{ reg *Registry }

func (c *exitCommand) Name() string       { return "exit" }
func (c *exitCommand) Usage() string      { return "exit" }
func (c *exitCommand) Permission() string { return PermExit }

func (c *exitCommand) Execute(terminal.Permissions, []string) bool {
	c.reg.log.Warning(`The exit command does not work. Try "service stop" instead.`)
	return true
}
