package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/SilvStei/ProductLedger/internal/config"
	"github.com/SilvStei/ProductLedger/internal/logging"
)

// ProductContract is defined in product_contract.go
func main() {
	cfg, err := config.Load("product")
	if err != nil {
		log.Panicf("Error loading configuration: %v", err)
	}
	logger, err := logging.New(cfg.ServiceName, cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Panicf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	cc, err := contractapi.NewChaincode(NewProductContract(logger))
	if err != nil {
		logger.Panic("Error creating product chaincode", zap.Error(err))
	}

	if !cfg.Server.External() {
		if err := cc.Start(); err != nil {
			logger.Panic("Error starting product chaincode", zap.Error(err))
		}
		return
	}

	tls, err := tlsProperties(cfg.Server)
	if err != nil {
		logger.Panic("Error reading chaincode TLS material", zap.Error(err))
	}
	server := &shim.ChaincodeServer{
		CCID:     cfg.Server.CCID,
		Address:  cfg.Server.Address,
		CC:       cc,
		TLSProps: tls,
	}
	logger.Info("starting chaincode server", cfg.Fields()...)
	if err := server.Start(); err != nil {
		logger.Panic("Error starting product chaincode server", zap.Error(err))
	}
}

func tlsProperties(s config.ServerConfig) (shim.TLSProperties, error) {
	if s.TLSDisabled {
		return shim.TLSProperties{Disabled: true}, nil
	}
	key, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return shim.TLSProperties{}, err
	}
	cert, err := os.ReadFile(s.CertPath)
	if err != nil {
		return shim.TLSProperties{}, err
	}
	props := shim.TLSProperties{Key: key, Cert: cert}
	if s.ClientCA != "" {
		props.ClientCACerts, err = os.ReadFile(s.ClientCA)
		if err != nil {
			return shim.TLSProperties{}, err
		}
	}
	return props, nil
}
