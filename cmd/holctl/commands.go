package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	hol "github.com/hpp2334/hol-runtime"
	"github.com/hpp2334/hol-runtime/application/digest"
	"github.com/hpp2334/hol-runtime/application/presets/archive"
	"github.com/hpp2334/hol-runtime/application/presets/blob"
	"github.com/hpp2334/hol-runtime/application/scheduler"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/host"
	"github.com/hpp2334/hol-runtime/hostfuncs"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// newRuntime builds a runtime configured from the environment, reading
// digest sources from store.
func newRuntime(g *Globals, store *hostfuncs.BlobStore, extra ...hol.Option) (*hol.Runtime, error) {
	strategy, err := digest.ParseStrategy(g.Config.Strategy)
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(scheduler.Kind(g.Config.Scheduler), g.Config.Workers)
	if err != nil {
		return nil, err
	}
	opts := []hol.Option{
		hol.WithLogger(g.Logger),
		hol.WithScheduler(sched),
		hol.WithStrategy(strategy),
		hol.WithMaxRequestSize(g.Config.MaxRequestSize),
	}
	if store != nil {
		opts = append(opts, hol.WithSources(store))
	}
	if g.Config.Workers > 0 {
		opts = append(opts, hol.WithDigestOptions(digest.WithParallelFeed(g.Config.Workers)))
	}
	return hol.New(append(opts, extra...)...)
}

func parseAlgorithms(names []string) ([]entities.DigestAlgorithm, error) {
	algs := make([]entities.DigestAlgorithm, 0, len(names))
	for _, name := range names {
		alg, ok := entities.ParseDigestAlgorithm(name)
		if !ok {
			return nil, fmt.Errorf("unknown algorithm %q", name)
		}
		algs = append(algs, alg)
	}
	return algs, nil
}

func printDigests(g *Globals, path string, results []entities.DigestResult) {
	for _, r := range results {
		fmt.Fprintf(g.Out, "%s  %s  %s\n", r.Algorithm, strings.ToLower(r.Value), path)
	}
}

// DigestCmd computes digests of files.
type DigestCmd struct {
	Alg      []string `help:"Algorithms to compute" default:"md5,sha1,sha256" sep:","`
	Strategy string   `help:"Override HOL_STRATEGY (interleaved, sequential)"`
	Progress bool     `help:"Log bytes consumed per algorithm"`
	Files    []string `arg:"" help:"Files to digest" type:"existingfile"`
}

func (c *DigestCmd) Run(g *Globals) error {
	algs, err := parseAlgorithms(c.Alg)
	if err != nil {
		return err
	}
	if c.Strategy != "" {
		g.Config.Strategy = c.Strategy
	}

	store := hostfuncs.NewBlobStore(hostfuncs.WithChunkSize(g.Config.ChunkSize))
	var extra []hol.Option
	if c.Progress {
		extra = append(extra, hol.WithDigestOptions(digest.WithProgress(func(alg entities.DigestAlgorithm, consumed int64) {
			g.Logger.Info("digest progress", "algorithm", alg.String(), "bytes", consumed)
		})))
	}
	rt, err := newRuntime(g, store, extra...)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	for _, path := range c.Files {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		id := store.Register(f)
		results, err := rt.BatchDigest(ctx, entities.BatchDigestArg{Algorithms: algs, BlobID: id})
		store.Release(id)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printDigests(g, path, results)
	}
	return nil
}

// invoke runs one command and decodes its result into ret.
func invoke(ctx context.Context, rt *hol.Runtime, pkg, cmd string, arg wireformat.Marshaler, ret wireformat.Unmarshaler) error {
	args, err := arg.MarshalWire()
	if err != nil {
		return err
	}
	resp := rt.Invoke(ctx, entities.InvocationRequest{PackageID: pkg, CommandID: cmd, Arguments: args})
	if !resp.Success {
		return fmt.Errorf("%s/%s: %s", pkg, cmd, resp.Error())
	}
	if ret == nil {
		return nil
	}
	return ret.UnmarshalWire(resp.Returns)
}

func openArchive(ctx context.Context, rt *hol.Runtime, path string) (*wireformat.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var opened archive.OpenZipRet
	if err := invoke(ctx, rt, archive.PackageID, archive.OpenZip, &archive.OpenZipArg{Data: data}, &opened); err != nil {
		return nil, err
	}
	return opened.Data, nil
}

// ZipLsCmd lists archive entries.
type ZipLsCmd struct {
	Archive string `arg:"" help:"ZIP archive" type:"existingfile"`
}

func (c *ZipLsCmd) Run(g *Globals) error {
	rt, err := newRuntime(g, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	h, err := openArchive(ctx, rt, c.Archive)
	if err != nil {
		return err
	}
	var listing archive.QueryDirRet
	if err := invoke(ctx, rt, archive.PackageID, archive.QueryDir, &archive.QueryDirArg{Archiver: h}, &listing); err != nil {
		return err
	}
	for _, item := range listing.Items {
		fmt.Fprintln(g.Out, item.Path)
	}
	return invoke(ctx, rt, archive.PackageID, archive.CloseZip, &archive.CloseZipArg{Archiver: h}, nil)
}

// ZipCatCmd prints one archive entry.
type ZipCatCmd struct {
	Archive string `arg:"" help:"ZIP archive" type:"existingfile"`
	Path    string `arg:"" help:"Entry path as listed by 'zip ls'"`
}

func (c *ZipCatCmd) Run(g *Globals) error {
	rt, err := newRuntime(g, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	h, err := openArchive(ctx, rt, c.Archive)
	if err != nil {
		return err
	}
	var loaded archive.LoadFileRet
	if err := invoke(ctx, rt, archive.PackageID, archive.LoadFile, &archive.LoadFileArg{Archiver: h, Path: c.Path}, &loaded); err != nil {
		return err
	}
	var content blob.LoadBlobRet
	if err := invoke(ctx, rt, blob.PackageID, blob.LoadBlobData, &blob.LoadBlobArg{Data: loaded.Data}, &content); err != nil {
		return err
	}
	_, err = g.Out.Write(content.Data)
	return err
}

// CommandsCmd prints the manifest.
type CommandsCmd struct {
	Format string `help:"Output format" enum:"json,yaml" default:"json"`
}

func (c *CommandsCmd) Run(g *Globals) error {
	rt, err := newRuntime(g, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := rt.Manifest()
	if err != nil {
		return err
	}
	if c.Format == "yaml" {
		return writeYAML(g, m)
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// writeYAML re-encodes v through its JSON form so embedded schemas come out
// as YAML mappings rather than byte lists.
func writeYAML(g *Globals, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(g.Out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// RunCmd computes digests through a compiled guest module.
type RunCmd struct {
	Wasm  string   `required:"" help:"Guest module" type:"existingfile"`
	Alg   []string `help:"Algorithms to compute" default:"md5,sha1,sha256" sep:","`
	Files []string `arg:"" help:"Files to digest" type:"existingfile"`
}

func (c *RunCmd) Run(g *Globals) error {
	algs, err := parseAlgorithms(c.Alg)
	if err != nil {
		return err
	}
	wasm, err := os.ReadFile(c.Wasm)
	if err != nil {
		return err
	}

	ctx := context.Background()
	exec, err := host.NewExecutor(ctx,
		host.WithLogger(g.Logger),
		host.WithBlobStore(hostfuncs.NewBlobStore(hostfuncs.WithChunkSize(g.Config.ChunkSize))),
	)
	if err != nil {
		return err
	}
	defer exec.Close(ctx)

	guest, err := exec.LoadGuest(ctx, wasm)
	if err != nil {
		return err
	}
	for _, path := range c.Files {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		results, err := guest.BatchDigest(ctx, algs, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printDigests(g, path, results)
	}
	return nil
}

// VersionCmd prints the runtime version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.Out, "holctl %s\n", hol.Version)
	return nil
}
