// Package parser recovers structured data from model output that is only
// approximately JSON: objects surrounded by prose, several objects on
// separate lines, or an object cut off before its closing braces.
package parser
