package codec

import (
	"github.com/allisson/go-env"
	"github.com/urfave/cli/v2"

	apihttp "github.com/tvmlabs/tvmabi/internal/api/http"
	"github.com/tvmlabs/tvmabi/registry"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serves the codec façade over HTTP against the registry",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "host", Value: ":8080", Usage: "listen address"},
	},
	Action: func(ctx *cli.Context) error {
		pg, err := registry.Connect(env.GetString("DB_PG_URL", ""))
		if err != nil {
			return err
		}
		if err := registry.CreateTables(ctx.Context, pg); err != nil {
			return err
		}

		s := apihttp.NewServer(ctx.String("host"))
		s.RegisterRoutes(apihttp.NewController(registry.NewRepository(pg)))
		return s.Run()
	},
}
