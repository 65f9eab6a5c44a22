// Package codec implements the urfave/cli subcommands for encoding and
// decoding ABI messages against a loaded contract document, and for
// managing the Postgres-backed contract registry.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"

	"github.com/allisson/go-env"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/contract"
	"github.com/tvmlabs/tvmabi/funcid"
	"github.com/tvmlabs/tvmabi/registry"
	"github.com/tvmlabs/tvmabi/schema"
)

func readABIFile(path string) (*schema.Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return schema.Load(raw)
}

func readJSONArg(ctx *cli.Context, flag string) (map[string]any, error) {
	raw := ctx.String(flag)
	if raw == "" {
		return map[string]any{}, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", flag)
	}
	return v, nil
}

func readStdinCell() (*cell.Slice, error) {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, errors.Wrap(err, "read stdin")
	}
	boc, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode base64 boc")
	}
	c, err := cell.FromBOC(boc)
	if err != nil {
		return nil, errors.Wrap(err, "parse boc")
	}
	return c.BeginParse(), nil
}

func printCell(c *cell.Cell) error {
	boc := c.ToBOC()
	os.Stdout.WriteString(base64.StdEncoding.EncodeToString(boc))
	os.Stdout.WriteString("\n")
	return nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	os.Stdout.Write(b)
	os.Stdout.WriteString("\n")
	return nil
}

var abiFlag = &cli.StringFlag{Name: "abi", Usage: "path to the contract's ABI JSON document", Required: true}

var Command = &cli.Command{
	Name:  "codec",
	Usage: "Encodes and decodes TVM contract ABI messages",

	Subcommands: cli.Commands{
		encodeInputCommand,
		decodeInputCommand,
		decodeOutputCommand,
		encodeEventCommand,
		decodeEventCommand,
		encodeDataCommand,
		decodeDataCommand,
		decodeFieldsCommand,
		functionIDCommand,
		registryCommand,
		serveCommand,
	},
}

var encodeInputCommand = &cli.Command{
	Name:      "encode-input",
	Usage:     "Encodes a function call body",
	ArgsUsage: "<function name>",
	Flags: []cli.Flag{
		abiFlag,
		&cli.StringFlag{Name: "args", Usage: "JSON object of input arguments"},
		&cli.StringFlag{Name: "header", Usage: "JSON object of header values (time/expire/pubkey)"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			cli.ShowSubcommandHelpAndExit(ctx, 1)
		}
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		args, err := readJSONArg(ctx, "args")
		if err != nil {
			return err
		}
		header, err := readJSONArg(ctx, "header")
		if err != nil {
			return err
		}
		c := contract.New(doc)
		body, err := c.EncodeInput(ctx.Args().First(), args, header, nil, nil)
		if err != nil {
			return err
		}
		return printCell(body)
	},
}

var decodeInputCommand = &cli.Command{
	Name:  "decode-input",
	Usage: "Decodes a function call body read as base64 BoC from stdin",
	Flags: []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		s, err := readStdinCell()
		if err != nil {
			return err
		}
		c := contract.New(doc)
		name, header, args, err := c.DecodeInput(s)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"function": name, "header": header, "args": args})
	},
}

var decodeOutputCommand = &cli.Command{
	Name:      "decode-output",
	Usage:     "Decodes a function response body read as base64 BoC from stdin",
	ArgsUsage: "<function name>",
	Flags:     []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			cli.ShowSubcommandHelpAndExit(ctx, 1)
		}
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		s, err := readStdinCell()
		if err != nil {
			return err
		}
		c := contract.New(doc)
		out, err := c.DecodeOutput(ctx.Args().First(), s)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var encodeEventCommand = &cli.Command{
	Name:      "encode-event",
	Usage:     "Encodes an event body",
	ArgsUsage: "<event name>",
	Flags:     []cli.Flag{abiFlag, &cli.StringFlag{Name: "args", Usage: "JSON object of event arguments"}},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			cli.ShowSubcommandHelpAndExit(ctx, 1)
		}
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		args, err := readJSONArg(ctx, "args")
		if err != nil {
			return err
		}
		c := contract.New(doc)
		body, err := c.EncodeEvent(ctx.Args().First(), args)
		if err != nil {
			return err
		}
		return printCell(body)
	},
}

var decodeEventCommand = &cli.Command{
	Name:  "decode-event",
	Usage: "Decodes an event body read as base64 BoC from stdin",
	Flags: []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		s, err := readStdinCell()
		if err != nil {
			return err
		}
		c := contract.New(doc)
		name, args, err := c.DecodeEvent(s)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"event": name, "args": args})
	},
}

var encodeDataCommand = &cli.Command{
	Name:  "encode-data",
	Usage: "Encodes the persistent data section",
	Flags: []cli.Flag{abiFlag, &cli.StringFlag{Name: "values", Usage: "JSON object of data field values"}},
	Action: func(ctx *cli.Context) error {
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		values, err := readJSONArg(ctx, "values")
		if err != nil {
			return err
		}
		c := contract.New(doc)
		out, err := c.EncodeData(values)
		if err != nil {
			return err
		}
		return printCell(out)
	},
}

var decodeDataCommand = &cli.Command{
	Name:  "decode-data",
	Usage: "Decodes the persistent data section read as base64 BoC from stdin",
	Flags: []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return errors.Wrap(err, "read stdin")
		}
		boc, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return errors.Wrap(err, "decode base64 boc")
		}
		root, err := cell.FromBOC(boc)
		if err != nil {
			return errors.Wrap(err, "parse boc")
		}
		c := contract.New(doc)
		out, err := c.DecodeData(root)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var decodeFieldsCommand = &cli.Command{
	Name:  "decode-fields",
	Usage: "Decodes the full storage (fields) section read as base64 BoC from stdin",
	Flags: []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		s, err := readStdinCell()
		if err != nil {
			return err
		}
		c := contract.New(doc)
		out, err := c.DecodeFields(s)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var functionIDCommand = &cli.Command{
	Name:      "function-id",
	Usage:     "Prints the input/output ids derived from a function's signature",
	ArgsUsage: "<function name>",
	Flags:     []cli.Flag{abiFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			cli.ShowSubcommandHelpAndExit(ctx, 1)
		}
		doc, err := readABIFile(ctx.String("abi"))
		if err != nil {
			return err
		}
		fn, ok := doc.Functions[ctx.Args().First()]
		if !ok {
			return errors.Errorf("unknown function %q", ctx.Args().First())
		}
		return printJSON(map[string]any{
			"input_id":  fn.InputID,
			"output_id": fn.OutputID,
		})
	},
}

var registryCommand = &cli.Command{
	Name:  "registry",
	Usage: "Manages the Postgres-backed contract registry",
	Subcommands: cli.Commands{
		{
			Name:      "load",
			Usage:     "Loads and stores an ABI document under a name",
			ArgsUsage: "<name> <abi.json>",
			Action: func(ctx *cli.Context) error {
				if ctx.Args().Len() != 2 {
					cli.ShowSubcommandHelpAndExit(ctx, 1)
				}
				raw, err := os.ReadFile(ctx.Args().Get(1))
				if err != nil {
					return errors.Wrap(err, "read abi file")
				}
				pg, err := registry.Connect(env.GetString("DB_PG_URL", ""))
				if err != nil {
					return err
				}
				if err := registry.CreateTables(ctx.Context, pg); err != nil {
					return err
				}
				if _, err := registry.NewRepository(pg).Put(ctx.Context, ctx.Args().First(), raw); err != nil {
					return err
				}
				return nil
			},
		},
		{
			Name:      "get",
			Usage:     "Prints a registered function's ids",
			ArgsUsage: "<name> <function>",
			Action: func(ctx *cli.Context) error {
				if ctx.Args().Len() != 2 {
					cli.ShowSubcommandHelpAndExit(ctx, 1)
				}
				pg, err := registry.Connect(env.GetString("DB_PG_URL", ""))
				if err != nil {
					return err
				}
				doc, err := registry.NewRepository(pg).Get(ctx.Context, ctx.Args().First())
				if err != nil {
					return err
				}
				fn, ok := doc.Functions[ctx.Args().Get(1)]
				if !ok {
					return errors.Errorf("unknown function %q", ctx.Args().Get(1))
				}
				return printJSON(map[string]any{
					"input_id":     fn.InputID,
					"output_id":    fn.OutputID,
					"response_bit": funcid.ResponseBit,
				})
			},
		},
		{
			Name:  "list",
			Usage: "Lists registered contract names",
			Action: func(ctx *cli.Context) error {
				pg, err := registry.Connect(env.GetString("DB_PG_URL", ""))
				if err != nil {
					return err
				}
				names, err := registry.NewRepository(pg).List(ctx.Context)
				if err != nil {
					return err
				}
				return printJSON(names)
			},
		},
		{
			Name:      "delete",
			Usage:     "Deletes a registered contract",
			ArgsUsage: "<name>",
			Action: func(ctx *cli.Context) error {
				if ctx.Args().Len() != 1 {
					cli.ShowSubcommandHelpAndExit(ctx, 1)
				}
				pg, err := registry.Connect(env.GetString("DB_PG_URL", ""))
				if err != nil {
					return err
				}
				return registry.NewRepository(pg).Delete(ctx.Context, ctx.Args().First())
			},
		},
	},
}
