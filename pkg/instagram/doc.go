// Package instagram knows the shape of Instagram's web front end: page URLs,
// post and profile link formats, outbound redirect links, and the CSS
// selectors used to find things on rendered pages.
//
// Nothing here talks to the network. Links are parsed, never fetched:
//
//	post, ok := instagram.ParsePost("/someone/p/C1a2B3/?img_index=1")
//	// post.URL == "https://www.instagram.com/p/C1a2B3/"
//
//	name, ok := instagram.UsernameFromHref("https://www.instagram.com/natgeo/")
//	// name == "natgeo"
package instagram
