package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/docattest/internal/client/client"
	"github.com/dmitrijs2005/docattest/internal/client/config"
	"github.com/dmitrijs2005/docattest/internal/client/wallet"
)

type App struct {
	config *config.Config
	client client.Client
	wallet *wallet.Wallet
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewAttestationClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

// Run starts the REPL and closes the connection when it returns.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	printlnFn("docattest signer, server", a.config.ServerEndpointAddr, "(type help)")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) hasKey() bool {
	return a.wallet != nil
}

func (a *App) status() string {
	if a.wallet == nil {
		return "[no key]"
	}
	return "[" + a.wallet.Address() + "]"
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
