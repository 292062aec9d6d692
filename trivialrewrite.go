/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package rewrite ties configuration parsing, module registration and
// module initialization together into the trivial-rewrite daemon. It is the
// equivalent of the maddy package in the mail server this was distilled
// from: cmd/trivial-rewrite and the "run"/"check-config" CLI subcommands
// are thin wrappers around the functions here.
package rewrite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	parser "github.com/foxcpp/trivial-rewrite/framework/cfgparser"
	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/hooks"
	"github.com/foxcpp/trivial-rewrite/framework/log"
	"github.com/foxcpp/trivial-rewrite/framework/module"

	// Imported for the side effect of module registration.
	_ "github.com/foxcpp/trivial-rewrite/internal/endpoint/resolve"
	_ "github.com/foxcpp/trivial-rewrite/internal/table"
)

var Version = "unknown (built from source tree)"

func BuildInfo() string {
	version := Version
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}

	return fmt.Sprintf(`%s

default config: %s
default state_dir: %s
default runtime_dir: %s`,
		version,
		filepath.Join(ConfigDirectory, "trivial-rewrite.conf"),
		DefaultStateDirectory,
		DefaultRuntimeDirectory)
}

// RunOptions holds the values the "run" subcommand collects from its CLI
// flags. It exists as a struct, rather than Run reading the flag package
// directly, so the flags can be declared once as urfave/cli.Flag values
// (shared with "trivial-rewrite run --help") without a second, conflicting
// registration against the stdlib flag package.
type RunOptions struct {
	ConfigPath string
	LogTargets string
	Libexec    string
	Debug      bool
}

// Run is the entry point for the "run" subcommand: it opens and parses the
// configuration file, then hands off to moduleMain. It returns a process
// exit code rather than calling os.Exit; the "run" subcommand passes that
// code to os.Exit. The check-config path does not call Run: it calls
// ReadGlobals, InitDirs, RegisterModules and InitModules itself.
func Run(opts RunOptions) int {
	config.LibexecDirectory = opts.Libexec
	log.DefaultLogger.Debug = opts.Debug

	var err error
	log.DefaultLogger.Out, err = LogOutputOption(strings.Split(opts.LogTargets, ","))
	if err != nil {
		systemdStatusErr(err)
		log.Println(err)
		return 2
	}

	os.Setenv("PATH", config.LibexecDirectory+string(filepath.ListSeparator)+os.Getenv("PATH"))

	f, err := os.Open(opts.ConfigPath)
	if err != nil {
		systemdStatusErr(err)
		log.Println(err)
		return 2
	}
	defer f.Close()

	cfg, err := parser.Read(f, opts.ConfigPath)
	if err != nil {
		systemdStatusErr(err)
		log.Println(err)
		return 2
	}

	if err := moduleMain(cfg); err != nil {
		systemdStatusErr(err)
		log.Println(err)
		return 2
	}

	return 0
}

func InitDirs() error {
	if config.StateDirectory == "" {
		config.StateDirectory = DefaultStateDirectory
	}
	if config.RuntimeDirectory == "" {
		config.RuntimeDirectory = DefaultRuntimeDirectory
	}
	if config.LibexecDirectory == "" {
		config.LibexecDirectory = DefaultLibexecDirectory
	}

	if err := ensureDirectoryWritable(config.StateDirectory); err != nil {
		return err
	}
	if err := ensureDirectoryWritable(config.RuntimeDirectory); err != nil {
		return err
	}

	if !filepath.IsAbs(config.StateDirectory) {
		return errors.New("state_dir should be absolute")
	}
	if !filepath.IsAbs(config.RuntimeDirectory) {
		return errors.New("runtime_dir should be absolute")
	}
	if !filepath.IsAbs(config.LibexecDirectory) {
		return errors.New("-libexec should be absolute")
	}

	// Relative paths in the configuration are relative to the state
	// directory, so change into it before any module initializes.
	if err := os.Chdir(config.StateDirectory); err != nil {
		log.Println(err)
	}

	return nil
}

func ensureDirectoryWritable(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}

	testFile, err := os.Create(filepath.Join(path, "writeable-test"))
	if err != nil {
		return err
	}
	testFile.Close()
	return os.Remove(testFile.Name())
}

// ReadGlobals binds the directives that apply process-wide (state_dir,
// runtime_dir, log, debug) and returns the resulting value map plus the
// remaining top-level blocks, which RegisterModules treats as module/
// endpoint configuration.
func ReadGlobals(cfg []config.Node) (map[string]interface{}, []config.Node, error) {
	globals := config.NewMap(nil, config.Node{Children: cfg})
	globals.String("state_dir", false, false, DefaultStateDirectory, &config.StateDirectory)
	globals.String("runtime_dir", false, false, DefaultRuntimeDirectory, &config.RuntimeDirectory)
	globals.Custom("log", false, false, defaultLogOutput, logOutput, &log.DefaultLogger.Out)
	globals.Bool("debug", false, log.DefaultLogger.Debug, &log.DefaultLogger.Debug)
	globals.AllowUnknown()
	unknown, err := globals.Process()
	return globals.Values, unknown, err
}

func moduleMain(cfg []config.Node) error {
	globals, modBlocks, err := ReadGlobals(cfg)
	if err != nil {
		return err
	}

	if err := InitDirs(); err != nil {
		return err
	}

	defer log.DefaultLogger.Out.Close()

	hooks.AddHook(hooks.EventLogRotate, reinitLogging)

	endpoints, mods, err := RegisterModules(globals, modBlocks)
	if err != nil {
		return err
	}

	if err := InitModules(globals, endpoints, mods); err != nil {
		return err
	}

	systemdStatus(SDReady, "listening for incoming connections...")

	handleSignals()

	systemdStatus(SDStopping, "waiting for in-flight lookups to complete...")

	hooks.RunHooks(hooks.EventShutdown)

	return nil
}

// ModInfo pairs a constructed module instance with the configuration block
// it was built from, so InitModules can bind it to a config.Map that also
// sees the process-wide globals.
type ModInfo struct {
	Instance module.Module
	Cfg      config.Node
}

// RegisterModules walks the top-level configuration blocks remaining after
// ReadGlobals and, for each one, either constructs an endpoint (a listening
// service - there must be at least one) or a regular named module instance
// registered into the global instance registry for later lookup by
// &name references (framework/config/module.ModuleFromNode).
func RegisterModules(globals map[string]interface{}, nodes []config.Node) (endpoints, mods []ModInfo, err error) {
	mods = make([]ModInfo, 0, len(nodes))

	for _, block := range nodes {
		var instName string
		var modAliases []string
		if len(block.Args) == 0 {
			instName = block.Name
		} else {
			instName = block.Args[0]
			modAliases = block.Args[1:]
		}

		modName := block.Name

		if endpFactory := module.GetEndpoint(modName); endpFactory != nil {
			inst, err := endpFactory(modName, block.Args)
			if err != nil {
				return nil, nil, err
			}

			endpoints = append(endpoints, ModInfo{Instance: inst, Cfg: block})
			continue
		}

		factory := module.Get(modName)
		if factory == nil {
			return nil, nil, config.NodeErr(block, "unknown module or global directive: %s", modName)
		}

		if module.HasInstance(instName) {
			return nil, nil, config.NodeErr(block, "config block named %s already exists", instName)
		}

		inst, err := factory(modName, instName, modAliases, nil)
		if err != nil {
			return nil, nil, err
		}

		block := block
		module.RegisterInstance(inst, config.NewMap(globals, block))
		for _, alias := range modAliases {
			if module.HasInstance(alias) {
				return nil, nil, config.NodeErr(block, "config block named %s already exists", alias)
			}
			module.RegisterAlias(alias, instName)
		}

		log.Debugf("%v:%v: register config block %v %v", block.File, block.Line, instName, modAliases)
		mods = append(mods, ModInfo{Instance: inst, Cfg: block})
	}

	if len(endpoints) == 0 {
		return nil, nil, fmt.Errorf("at least one endpoint should be configured")
	}

	return endpoints, mods, nil
}

// InitModules initializes every endpoint (registering an EventShutdown hook
// for any that implement io.Closer) and then checks that every regular
// module block was actually referenced by something - an unused block is
// almost always a typo in the configuration.
func InitModules(globals map[string]interface{}, endpoints, mods []ModInfo) error {
	for _, endp := range endpoints {
		if err := endp.Instance.Init(config.NewMap(globals, endp.Cfg)); err != nil {
			return err
		}

		if closer, ok := endp.Instance.(io.Closer); ok {
			endp := endp
			hooks.AddHook(hooks.EventShutdown, func() {
				log.Debugf("close %s (%s)", endp.Instance.Name(), endp.Instance.InstanceName())
				if err := closer.Close(); err != nil {
					log.Printf("module %s (%s) close failed: %v", endp.Instance.Name(), endp.Instance.InstanceName(), err)
				}
			})
		}
	}

	for _, inst := range mods {
		if module.Initialized[inst.Instance.InstanceName()] {
			continue
		}

		return fmt.Errorf("unused configuration block at %s:%d - %s (%s)",
			inst.Cfg.File, inst.Cfg.Line, inst.Instance.InstanceName(), inst.Instance.Name())
	}

	return nil
}
