// Command kubecore-objects applies, reads and deletes cluster resources through
// the typed resource client.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/crossplane/function-sdk-go/logging"
	"sigs.k8s.io/yaml"

	"github.com/novelcore/kubecore-object-client/internal/config"
	"github.com/novelcore/kubecore-object-client/pkg/client"
	"github.com/novelcore/kubecore-object-client/pkg/manifest"
	"github.com/novelcore/kubecore-object-client/pkg/materialize"
)

// Globals are the flags shared by every command. Unset flags fall back to
// the environment configuration.
type Globals struct {
	Debug      bool   `short:"d" help:"Emit debug logs in addition to info logs."`
	Kubeconfig string `help:"Path to the kubeconfig file." type:"path"`
	Context    string `help:"Kubeconfig context to use."`
	InCluster  bool   `help:"Use the in-cluster service account."`
	Namespace  string `short:"n" help:"Namespace for namespaced resources without one."`
}

var stdout io.Writer = os.Stdout

// CLI is the command line surface
type CLI struct {
	Globals

	Apply    ApplyCmd    `cmd:"" help:"Create or patch the resources in a manifest file."`
	Create   CreateCmd   `cmd:"" help:"Create the resources in a manifest file."`
	Delete   DeleteCmd   `cmd:"" help:"Delete the resources in a manifest file."`
	Get      GetCmd      `cmd:"" help:"Print one resource."`
	List     ListCmd     `cmd:"" help:"Print every resource of a kind."`
	Versions VersionsCmd `cmd:"" help:"Print the preferred apiVersions serving a kind."`
}

// ApplyCmd applies manifests
type ApplyCmd struct {
	File string `short:"f" required:"" help:"Manifest file." type:"existingfile"`
}

// CreateCmd creates manifests
type CreateCmd struct {
	File string `short:"f" required:"" help:"Manifest file." type:"existingfile"`
}

// DeleteCmd deletes manifests
type DeleteCmd struct {
	File string `short:"f" required:"" help:"Manifest file." type:"existingfile"`
}

// GetCmd reads one resource
type GetCmd struct {
	Kind string `arg:"" help:"Resource kind."`
	Name string `arg:"" help:"Resource name."`
}

// ListCmd lists resources
type ListCmd struct {
	Kind          string `arg:"" help:"Resource kind."`
	AllNamespaces bool   `short:"A" help:"List across all namespaces."`
}

// VersionsCmd prints preferred apiVersions
type VersionsCmd struct {
	Kind string `arg:"" help:"Resource kind."`
}

func (g *Globals) connect(ctx context.Context) (*client.Client, error) {
	cfg := config.New()
	if g.Debug {
		cfg.Debug = true
	}
	if g.Kubeconfig != "" {
		cfg.KubeConfigPath = g.Kubeconfig
	}
	if g.Context != "" {
		cfg.KubeContext = g.Context
	}
	if g.InCluster {
		cfg.InClusterConfig = true
	}
	if g.Namespace != "" {
		cfg.DefaultNamespace = g.Namespace
	}

	log, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	return client.New(ctx, cfg, log)
}

func (g *Globals) print(objects ...*materialize.Object) error {
	for i, obj := range objects {
		data, err := yaml.Marshal(obj.Map())
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(stdout, "---")
		}
		if _, err := stdout.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// Run applies the manifests
func (c *ApplyCmd) Run(ctx context.Context, g *Globals) error {
	manifests, err := manifest.DecodeFile(c.File)
	if err != nil {
		return err
	}
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}
	objects, err := cl.ApplyAll(ctx, manifests)
	if err != nil {
		return err
	}
	return g.print(objects...)
}

// Run creates the manifests
func (c *CreateCmd) Run(ctx context.Context, g *Globals) error {
	manifests, err := manifest.DecodeFile(c.File)
	if err != nil {
		return err
	}
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}
	objects, err := cl.CreateAll(ctx, manifests)
	if err != nil {
		return err
	}
	return g.print(objects...)
}

// Run deletes the manifests
func (c *DeleteCmd) Run(ctx context.Context, g *Globals) error {
	manifests, err := manifest.DecodeFile(c.File)
	if err != nil {
		return err
	}
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}
	if err := cl.DeleteAll(ctx, manifests); err != nil {
		return err
	}
	for _, m := range manifests {
		fmt.Fprintf(stdout, "%s %s deleted\n", m.GetKind(), m.GetName())
	}
	return nil
}

// Run prints one resource
func (c *GetCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}
	obj, err := cl.Get(ctx, c.Kind, c.Name, g.Namespace)
	if err != nil {
		return err
	}
	return g.print(obj)
}

// Run prints every resource of a kind
func (c *ListCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}

	var objects []*materialize.Object
	if c.AllNamespaces {
		objects, err = cl.ListAllNamespaces(ctx, c.Kind)
	} else {
		objects, err = cl.List(ctx, c.Kind, g.Namespace)
	}
	if err != nil {
		return err
	}
	return g.print(objects...)
}

// Run prints the preferred apiVersions of a kind
func (c *VersionsCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.connect(ctx)
	if err != nil {
		return err
	}
	for _, v := range cl.PreferredAPIVersions(c.Kind) {
		fmt.Fprintln(stdout, v)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("kubecore-objects"),
		kong.Description("Typed access to Kubernetes resources."),
		kong.BindTo(ctx, (*context.Context)(nil)))
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
