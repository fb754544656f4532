/*
Package clients provides an HTTP client for the people registry API.

RegistryClient signs every authenticated request with the caller's secp256k1
key (see api.SignRequest), so the server derives the caller identity from the
signature rather than from anything the client claims.

# Example Usage

	key, _ := crypto.HexToECDSA("your-private-key-hex")
	client := clients.NewRegistryClient("http://localhost:8080", key)

	person, err := client.CreatePerson(ctx, api.CreatePersonRequest{
	    Name:    "Sammy",
	    Age:     70,
	    Height:  170,
	    Payment: api.PaymentRequest{Amount: "1ether"},
	})

	me, err := client.GetPerson(ctx)

Errors returned for non-2xx responses are *APIError values that unwrap to the
matching sentinel, e.g. errors.Is(err, interfaces.ErrInvalidAge).
*/
package clients
