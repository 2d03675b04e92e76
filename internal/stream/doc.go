// Package stream provides a seekable, cloneable view over a forward-only
// response body.
//
// Bytes are pulled from the source lazily and cached, so a body can be read,
// rewound and read again without a second network round trip. Clones share
// the cache and the source but carry their own cursor, which lets a browser
// hand out copies of a response while keeping the original intact.
package stream
