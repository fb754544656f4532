package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/people-registry/api"
	"github.com/ruteri/people-registry/api/clients"
	"github.com/ruteri/people-registry/cmd/flags"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/ruteri/people-registry/ledger"
	"github.com/urfave/cli/v2"
)

var (
	flagName = &cli.StringFlag{
		Name:  "name",
		Usage: "name to store",
	}
	flagAge = &cli.UintFlag{
		Name:  "age",
		Usage: "age to store",
	}
	flagHeight = &cli.UintFlag{
		Name:  "height",
		Usage: "height to store",
	}
	flagAmount = &cli.StringFlag{
		Name:  "amount",
		Usage: "payment amount, e.g. 1ether; with --pay the on-chain value, otherwise debited from the memory ledger",
	}
	flagTxHash = &cli.StringFlag{
		Name:  "tx-hash",
		Usage: "hash of a value transfer to the custody address to use as payment",
	}
	flagPay = &cli.BoolFlag{
		Name:  "pay",
		Usage: "send --amount to the custody address on chain before creating",
	}
	flagTimeout = &cli.DurationFlag{
		Name:  "timeout",
		Value: 2 * time.Minute,
		Usage: "overall timeout, including waiting for an on-chain payment to be mined",
	}
)

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: "Client for the people registry API",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.KeyFlag,
			flags.KeystoreFlag,
			flags.PasswordFlag,
			flags.RpcAddrFlag,
			flagTimeout,
		},
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Store the caller's record",
				Flags:  []cli.Flag{flagName, flagAge, flagHeight, flagAmount, flagTxHash, flagPay},
				Action: withClient(create),
			},
			{
				Name:   "get",
				Usage:  "Print the caller's record",
				Action: withClient(get),
			},
			{
				Name:      "delete",
				Usage:     "Clear a record (owner only)",
				ArgsUsage: "<identity>",
				Action:    withClient(deletePerson),
			},
			{
				Name:   "withdraw",
				Usage:  "Pay the registry balance out to the owner (owner only)",
				Action: withClient(withdraw),
			},
			{
				Name:   "info",
				Usage:  "Print the registry parameters",
				Action: withClient(info),
			},
			{
				Name:   "pay",
				Usage:  "Send the registration fee to the custody address and print the transaction hash",
				Flags:  []cli.Flag{flagAmount},
				Action: withClient(pay),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type commandFn func(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error

func withClient(fn commandFn) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		key, err := flags.KeyFromFlags(cCtx)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
		defer cancel()

		client := clients.NewRegistryClient(cCtx.String(flags.ServerAddrFlag.Name), key)
		return fn(ctx, cCtx, client)
	}
}

func create(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	age, err := flags.Uint32(cCtx, flagAge.Name)
	if err != nil {
		return err
	}
	height, err := flags.Uint32(cCtx, flagHeight.Name)
	if err != nil {
		return err
	}

	payment := api.PaymentRequest{
		TxHash: cCtx.String(flagTxHash.Name),
		Amount: cCtx.String(flagAmount.Name),
	}

	if cCtx.Bool(flagPay.Name) {
		if payment.TxHash != "" {
			return errors.New("--pay and --tx-hash are mutually exclusive")
		}
		tx, err := sendFee(ctx, cCtx, client)
		if err != nil {
			return err
		}
		payment = api.PaymentRequest{TxHash: tx.Hash().Hex()}
	}

	resp, err := client.CreatePerson(ctx, api.CreatePersonRequest{
		Name:    cCtx.String(flagName.Name),
		Age:     age,
		Height:  height,
		Payment: payment,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func get(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	resp, err := client.GetPerson(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func deletePerson(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	if cCtx.NArg() != 1 {
		return errors.New("expected the identity to delete")
	}
	target, err := interfaces.NewIdentityFromHex(cCtx.Args().First())
	if err != nil {
		return err
	}
	if err := client.DeletePerson(ctx, target); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", target.Hex())
	return nil
}

func withdraw(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	resp, err := client.WithdrawAll(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func info(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	resp, err := client.RegistryInfo(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func pay(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) error {
	tx, err := sendFee(ctx, cCtx, client)
	if err != nil {
		return err
	}
	fmt.Println(tx.Hash().Hex())
	return nil
}

// sendFee transfers --amount, or the registry's minimum fee, to the custody
// address and waits for the transfer to be mined.
func sendFee(ctx context.Context, cCtx *cli.Context, client *clients.RegistryClient) (*types.Transaction, error) {
	registryInfo, err := client.RegistryInfo(ctx)
	if err != nil {
		return nil, err
	}
	if registryInfo.Custody == "" {
		return nil, fmt.Errorf("registry uses the %s ledger, which takes no on-chain payments", registryInfo.Ledger)
	}
	custody, err := interfaces.NewIdentityFromHex(registryInfo.Custody)
	if err != nil {
		return nil, err
	}

	amountStr := cCtx.String(flagAmount.Name)
	if amountStr == "" {
		amountStr = registryInfo.MinFee
	}
	amount, err := interfaces.ParseAmount(amountStr)
	if err != nil {
		return nil, err
	}

	key, err := flags.KeyFromFlags(cCtx)
	if err != nil {
		return nil, err
	}

	ethClient, err := ethclient.DialContext(ctx, cCtx.String(flags.RpcAddrFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	defer ethClient.Close()

	tx, err := ledger.Transfer(ctx, ethClient, key, custody, amount)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "sent %s to %s in %s, waiting to be mined\n",
		interfaces.FormatAmount(amount), custody.Hex(), tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, ethClient, tx)
	if err != nil {
		return nil, fmt.Errorf("payment %s not mined: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("payment %s reverted", tx.Hash().Hex())
	}
	return tx, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
