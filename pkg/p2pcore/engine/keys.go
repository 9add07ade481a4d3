package engine

import (
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	"github.com/multiformats/go-multihash"
)

// keyToCid turns an application-chosen provider/record key into the CID
// the DHT's provider-record API requires, by wrapping it in an identity
// multihash. This keeps the public Engine surface byte-oriented (spec §6:
// "the library only requires that each be serializable to bytes and
// back") while still speaking the DHT's native key type underneath.
func keyToCid(key []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(key, multihash.IDENTITY, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func dsKey(key []byte) datastore.Key {
	return datastore.NewKey(string(key))
}
