package media

import (
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

var ErrInvalidMedia = errors.New("invalid media reference")

const DefaultGatewayPrefix = "https://gateway.pinata.cloud/ipfs/"

// Resolver turns user supplied media references (a CID, an ipfs:// URI or a plain web URL) into the URI stored on
// the ledger. IPFS content is stored as a gateway URL so that any client can display it directly.
type Resolver struct {
	gatewayPrefix string
}

func NewResolver(gatewayPrefix string) *Resolver {
	if gatewayPrefix == "" {
		gatewayPrefix = DefaultGatewayPrefix
	}

	if !strings.HasSuffix(gatewayPrefix, "/") {
		gatewayPrefix += "/"
	}

	return &Resolver{gatewayPrefix: gatewayPrefix}
}

// Resolve validates ref and returns the URI to store. An empty ref means no media.
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}

	if rest, found := strings.CutPrefix(ref, "ipfs://"); found {
		return r.gatewayURL(rest, ref)
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		parsed, err := url.Parse(ref)
		if err != nil || parsed.Host == "" {
			return "", errors.Wrapf(ErrInvalidMedia, "%q is not a valid URL", ref)
		}

		return parsed.String(), nil
	}

	return r.gatewayURL(ref, ref)
}

func (r *Resolver) gatewayURL(cidAndPath, original string) (string, error) {
	cidStr, path, _ := strings.Cut(cidAndPath, "/")

	id, err := cid.Decode(cidStr)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidMedia, "%q: %v", original, err)
	}

	uri := r.gatewayPrefix + id.String()
	if path != "" {
		uri += "/" + path
	}

	return uri, nil
}

// CID extracts the content identifier from a stored URI, if it points at IPFS content.
func CID(uri string) (cid.Cid, bool) {
	_, rest, found := strings.Cut(uri, "/ipfs/")
	if !found {
		return cid.Undef, false
	}

	cidStr, _, _ := strings.Cut(rest, "/")
	id, err := cid.Decode(cidStr)
	if err != nil {
		return cid.Undef, false
	}

	return id, true
}

// ContentID computes the CIDv1 (raw codec, sha2-256) that IPFS assigns to data added without chunking.
func ContentID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}

	return cid.NewCidV1(cid.Raw, sum), nil
}
