// Command perkscc runs the perks ledger as Fabric chaincode.
//
// By default it connects to the peer that launched it. When
// CHAINCODE_SERVER_ADDRESS is set it runs as an external chaincode
// service instead, identified by CHAINCODE_ID.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/roach88/perks/internal/chaincode"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cc, err := contractapi.NewChaincode(chaincode.New(logger))
	if err != nil {
		log.Panicf("create perks chaincode: %v", err)
	}

	addr := os.Getenv("CHAINCODE_SERVER_ADDRESS")
	if addr == "" {
		if err := cc.Start(); err != nil {
			log.Panicf("start perks chaincode: %v", err)
		}
		return
	}

	server := &shim.ChaincodeServer{
		CCID:     os.Getenv("CHAINCODE_ID"),
		Address:  addr,
		CC:       cc,
		TLSProps: shim.TLSProperties{Disabled: true},
	}
	logger.Info("serving external chaincode", "address", addr)
	if err := server.Start(); err != nil {
		log.Panicf("serve perks chaincode: %v", err)
	}
}
