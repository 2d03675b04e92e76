// Package forms turns an HTML response into a Page: its title, links and
// forms. A Form models its controls the way a browser does and serializes
// them into a pipeline.Request when clicked.
//
// Parsing uses goquery. The document charset comes from the Content-Type
// header, then from chardet detection, and is decoded with
// golang.org/x/net/html/charset before parsing.
package forms
