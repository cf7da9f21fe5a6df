// Package normalize provides lexical canonicalization of medication and
// supplement names, order-insensitive pair keys, and the pair/triple
// enumeration used by the analysis pipeline.
//
// Canonicalization is purely lexical: it never consults an upstream
// terminology service. Two inputs that canonicalize to the same value share
// a cache partition everywhere downstream.
package normalize
