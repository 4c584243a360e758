// Package esbuild drives the native-es-bundler backend in-process through the
// esbuild Go API.
package esbuild

import (
	"fmt"
	"os"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
)

// Descriptor registers the backend with a bundler.Registry.
func Descriptor() bundler.Descriptor {
	return bundler.Descriptor{
		Kind: bundler.KindNativeES,
		Markers: bundler.Markers{
			Packages: []string{"esbuild"},
			Files:    []string{"esbuild.config.json", "esbuild.config.yaml", "esbuild.config.yml"},
		},
		Defaults: bundler.Defaults{
			Entry:      "src/index.js",
			PublicDir:  "public",
			OutputDir:  "build",
			ConfigFile: "esbuild.config.json",
		},
		LoadConfigFile: LoadConfigFile,
		New:            func() bundler.Engine { return NewEngine() },
	}
}

// LoadConfigFile reads an esbuild.config.{json,yaml,yml} file. JSON is parsed
// with the YAML decoder, which accepts it as a subset.
func LoadConfigFile(path string) (bundler.FileOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bundler.FileOptions{}, err
	}
	var opts bundler.FileOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return bundler.FileOptions{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := loaders(opts.Loader); err != nil {
		return bundler.FileOptions{}, err
	}
	return opts, nil
}

var loaderNames = map[string]api.Loader{
	"base64":     api.LoaderBase64,
	"binary":     api.LoaderBinary,
	"copy":       api.LoaderCopy,
	"css":        api.LoaderCSS,
	"dataurl":    api.LoaderDataURL,
	"default":    api.LoaderDefault,
	"empty":      api.LoaderEmpty,
	"file":       api.LoaderFile,
	"global-css": api.LoaderGlobalCSS,
	"js":         api.LoaderJS,
	"json":       api.LoaderJSON,
	"jsx":        api.LoaderJSX,
	"local-css":  api.LoaderLocalCSS,
	"text":       api.LoaderText,
	"ts":         api.LoaderTS,
	"tsx":        api.LoaderTSX,
}

func loaders(in map[string]string) (map[string]api.Loader, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]api.Loader, len(in))
	exts := make([]string, 0, len(in))
	for ext := range in {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		l, ok := loaderNames[in[ext]]
		if !ok {
			return nil, fmt.Errorf("unknown loader %q for %s", in[ext], ext)
		}
		out[ext] = l
	}
	return out, nil
}
