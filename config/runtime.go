package config

import (
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/ruteri/tdf-pipeline/conversion"
	"github.com/ruteri/tdf-pipeline/converter"
	"github.com/ruteri/tdf-pipeline/cryptoutils"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/sdkclient"
)

// Runtime holds the long lived components built from an Operator.
type Runtime struct {
	Clients    *sdkclient.Manager
	Assembler  *conversion.Assembler
	Decryption converter.DecryptorConfig

	log *slog.Logger
}

// Build validates the configuration and wires the shared client manager,
// the config assembler and the decrypt verification settings.
func (o Operator) Build(log *slog.Logger, builder interfaces.ClientBuilder) (*Runtime, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var keyProvider interfaces.PrivateKeyProvider
	if o.SignAssertions {
		provider, err := cryptoutils.PrivateKeyProviderFor(o.PrivateKeyURI, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create private key provider: %w", err)
		}
		keyProvider = provider
	}

	verificationKeyPath := o.VerificationKeyPath
	decryption := converter.DecryptorConfig{VerifyAssertions: o.VerifyAssertions}
	if o.VerifyAssertions {
		decryption.LoadVerificationKey = func() (*rsa.PublicKey, error) {
			return cryptoutils.LoadVerificationKey(verificationKeyPath)
		}
	}

	return &Runtime{
		Clients: sdkclient.NewManager(log, o.Platform, builder, cryptoutils.PEMTrustStore{}),
		Assembler: conversion.NewAssembler(log, conversion.AssemblerConfig{
			DefaultKASEndpoint: o.DefaultKASEndpoint,
			SignAssertions:     o.SignAssertions,
			KeyProvider:        keyProvider,
		}),
		Decryption: decryption,
		log:        log,
	}, nil
}

// Converter returns the batch converter for a direction and format.
func (rt *Runtime) Converter(direction converter.Direction, format interfaces.ContainerFormat) (interfaces.BatchConverter, error) {
	switch direction {
	case converter.DirectionEncrypt:
		return converter.NewEncryptor(rt.log, format, rt.Clients, rt.Assembler), nil
	case converter.DirectionDecrypt:
		return converter.NewDecryptor(rt.log, format, rt.Clients, rt.Decryption), nil
	default:
		return nil, fmt.Errorf("unsupported direction: %q", direction)
	}
}

// Close releases every SDK client built so far.
func (rt *Runtime) Close() error {
	return rt.Clients.Close()
}
