package rpc

import (
	"encoding/json"
	"errors"
)

var (
	ErrNoData   = errors.New("Data was not called on builder")
	ErrNoSigner = errors.New("Signed was not called on builder")
)

type Builder struct {
	requestType RequestType
	data        any
	signer      Signer
	app         string
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) App(app string) *Builder {
	b.app = app
	return b
}

func (b *Builder) Data(requestType RequestType, data any) *Builder {
	b.requestType = requestType
	b.data = data
	return b
}

func (b *Builder) Signed(signer Signer) *Builder {
	b.signer = signer
	return b
}

func (b *Builder) Build() (MuxedRequest, error) {
	if b.data == nil || b.requestType == "" {
		return MuxedRequest{}, ErrNoData
	}

	if b.signer == nil {
		return MuxedRequest{}, ErrNoSigner
	}

	wrapped, err := wrap(b.requestType, b.data)
	if err != nil {
		return MuxedRequest{}, err
	}

	payload, err := sign(wrapped, b.signer)
	if err != nil {
		return MuxedRequest{}, err
	}

	inner, err := json.Marshal(payload)
	if err != nil {
		return MuxedRequest{}, err
	}

	return MuxedRequest{
		App:  b.app,
		Data: inner,
	}, nil
}

func (b *Builder) Marshal() ([]byte, error) {
	payload, err := b.Build()
	if err != nil {
		return nil, err
	}

	return json.Marshal(payload)
}

// NewQuery builds the data field for an ABCI query routed to the given app. Queries are not signed.
func NewQuery(app string) ([]byte, error) {
	return json.Marshal(MuxedRequest{App: app})
}
