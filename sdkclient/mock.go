package sdkclient

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-jose/go-jose/v4"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of interfaces.TDFClient.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateTDF(ctx context.Context, w io.Writer, r io.ReadSeeker, cfg *interfaces.ConversionConfig) error {
	return m.Called(ctx, w, r, cfg).Error(0)
}

func (m *MockClient) LoadTDF(ctx context.Context, w io.Writer, r io.ReadSeeker, verification interfaces.AssertionVerification) error {
	return m.Called(ctx, w, r, verification).Error(0)
}

func (m *MockClient) CreateNanoTDF(ctx context.Context, w io.Writer, r io.Reader, cfg *interfaces.ConversionConfig) error {
	return m.Called(ctx, w, r, cfg).Error(0)
}

func (m *MockClient) ReadNanoTDF(ctx context.Context, w io.Writer, r io.ReadSeeker) error {
	return m.Called(ctx, w, r).Error(0)
}

func (m *MockClient) Close() error {
	return m.Called().Error(0)
}

var (
	fakeZTDFMagic = []byte("FAKEZTDF")
	fakeNanoMagic = []byte("FAKENANO")

	// ErrNotAContainer is returned by FakeClient when reading bytes it did not produce.
	ErrNotAContainer = errors.New("not a container")

	// ErrAssertionVerification is returned by FakeClient when a signed container
	// does not match the verification key.
	ErrAssertionVerification = errors.New("assertion verification failed")
)

// fakeManifest is the header FakeClient writes in front of a container payload.
type fakeManifest struct {
	Endpoints    []string `json:"endpoints"`
	Attributes   []string `json:"attributes"`
	Assertions   []string `json:"assertions,omitempty"`
	SigningKeyID string   `json:"signingKeyId,omitempty"`
}

// FakeClient is an in-memory TDFClient producing a reversible, unencrypted
// container. It records every config it receives.
type FakeClient struct {
	mu            sync.Mutex
	configs       []*interfaces.ConversionConfig
	verifications []interfaces.AssertionVerification
	closed        bool

	// Fail, when set, is consulted with the input bytes of every call.
	Fail func(input []byte) error
}

// NewFakeClient creates an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Builder returns a ClientBuilder handing out this client and recording the configs it was built with.
func (f *FakeClient) Builder(built *[]interfaces.ClientConfig) interfaces.ClientBuilder {
	var mu sync.Mutex
	return func(_ context.Context, cfg interfaces.ClientConfig) (interfaces.TDFClient, error) {
		if built != nil {
			mu.Lock()
			*built = append(*built, cfg)
			mu.Unlock()
		}
		return f, nil
	}
}

// Configs returns the conversion configs received so far.
func (f *FakeClient) Configs() []*interfaces.ConversionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*interfaces.ConversionConfig(nil), f.configs...)
}

// Verifications returns the verification settings received so far.
func (f *FakeClient) Verifications() []interfaces.AssertionVerification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.AssertionVerification(nil), f.verifications...)
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeClient) CreateTDF(_ context.Context, w io.Writer, r io.ReadSeeker, cfg *interfaces.ConversionConfig) error {
	return f.create(w, r, cfg, fakeZTDFMagic)
}

func (f *FakeClient) CreateNanoTDF(_ context.Context, w io.Writer, r io.Reader, cfg *interfaces.ConversionConfig) error {
	return f.create(w, r, cfg, fakeNanoMagic)
}

func (f *FakeClient) LoadTDF(_ context.Context, w io.Writer, r io.ReadSeeker, verification interfaces.AssertionVerification) error {
	f.mu.Lock()
	f.verifications = append(f.verifications, verification)
	f.mu.Unlock()

	manifest, payload, err := f.open(r, fakeZTDFMagic)
	if err != nil {
		return err
	}

	if !verification.Disabled && verification.Key != nil && manifest.SigningKeyID != "" {
		keyID, err := keyID(verification.Key)
		if err != nil {
			return err
		}
		if keyID != manifest.SigningKeyID {
			return ErrAssertionVerification
		}
	}

	_, err = w.Write(payload)
	return err
}

func (f *FakeClient) ReadNanoTDF(_ context.Context, w io.Writer, r io.ReadSeeker) error {
	_, payload, err := f.open(r, fakeNanoMagic)
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeClient) create(w io.Writer, r io.Reader, cfg *interfaces.ConversionConfig, magic []byte) error {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.Fail != nil {
		if err := f.Fail(plaintext); err != nil {
			return err
		}
	}

	manifest := fakeManifest{
		Endpoints:  cfg.Endpoints(),
		Attributes: cfg.Attributes().Values(),
	}
	for _, a := range cfg.Assertions() {
		manifest.Assertions = append(manifest.Assertions, a.ID)
	}
	if key := cfg.SigningKey(); key != nil {
		manifest.SigningKeyID = key.PublicKey.KeyID
	}

	header, err := json.Marshal(manifest)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(magic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(header)))
	buf.Write(header)
	buf.Write(plaintext)
	_, err = w.Write(buf.Bytes())
	return err
}

func (f *FakeClient) open(r io.Reader, magic []byte) (fakeManifest, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return fakeManifest{}, nil, err
	}
	if f.Fail != nil {
		if err := f.Fail(data); err != nil {
			return fakeManifest{}, nil, err
		}
	}

	if !bytes.HasPrefix(data, magic) || len(data) < len(magic)+4 {
		return fakeManifest{}, nil, ErrNotAContainer
	}
	data = data[len(magic):]
	headerLen := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if headerLen > len(data) {
		return fakeManifest{}, nil, ErrNotAContainer
	}

	var manifest fakeManifest
	if err := json.Unmarshal(data[:headerLen], &manifest); err != nil {
		return fakeManifest{}, nil, fmt.Errorf("%w: %v", ErrNotAContainer, err)
	}
	return manifest, data[headerLen:], nil
}

func keyID(key crypto.PublicKey) (string, error) {
	thumbprint, err := (&jose.JSONWebKey{Key: key}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}
