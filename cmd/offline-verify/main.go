// Package main verifies a credential document against a signed snapshot
// without contacting the registry.
//
//	curl -H 'Accept: application/cbor' http://localhost:8080/verifier/snapshot > snapshot.cbor
//	offline-verify -snapshot snapshot.cbor -trust did:key:z6Mk... credential.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"presence/internal/credential/verifier"
	idmodels "presence/internal/identity/models"
	"presence/internal/platform/logger"
	pstrings "presence/pkg/platform/strings"
)

func main() {
	snapshotPath := flag.String("snapshot", "snapshot.cbor", "CBOR snapshot from GET /verifier/snapshot")
	trusted := flag.String("trust", "", "issuer DID the snapshot must be signed by")
	peers := flag.String("peers", "", "comma separated did:key issuers also accepted")
	flag.Parse()

	if *trusted == "" || flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "usage: offline-verify -snapshot FILE -trust DID [-peers DID,...] [credential.json]")
		os.Exit(2)
	}

	var peerDIDs []idmodels.DID
	for _, p := range pstrings.SplitList(*peers) {
		peerDIDs = append(peerDIDs, idmodels.DID(p))
	}

	code, err := run(*snapshotPath, idmodels.DID(*trusted), peerDIDs, flag.Arg(0), os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "offline-verify:", err)
	}
	os.Exit(code)
}

// run returns 0 for a valid credential, 1 for an invalid one and 2 when the
// check could not be performed.
func run(snapshotPath string, trusted idmodels.DID, peers []idmodels.DID, credentialPath string, stdin io.Reader, stdout io.Writer) (int, error) {
	rawSnapshot, err := os.ReadFile(snapshotPath)
	if err != nil {
		return 2, err
	}
	snap, err := verifier.DecodeSnapshot(rawSnapshot)
	if err != nil {
		return 2, err
	}
	v, err := verifier.NewOffline(snap, trusted,
		verifier.WithTrustedPeers(peers...),
		verifier.WithLogger(logger.New("warn")),
	)
	if err != nil {
		return 2, err
	}

	var document []byte
	if credentialPath == "" {
		document, err = io.ReadAll(stdin)
	} else {
		document, err = os.ReadFile(credentialPath)
	}
	if err != nil {
		return 2, err
	}

	result, err := v.VerifyRaw(context.Background(), document)
	if err != nil {
		return 2, err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"valid":       result.Valid,
		"reason":      result.Reason,
		"detail":      result.Detail,
		"snapshot_at": snap.CreatedAt,
	}); err != nil {
		return 2, err
	}
	if !result.Valid {
		return 1, nil
	}
	return 0, nil
}
