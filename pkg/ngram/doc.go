/*
Package ngram scores text and predicts continuations with a fixed-order
n-gram model loaded from a pre-fit frequency table.

A Model is immutable once built: the table is indexed once by full n-gram
and by (n-1)-token prefix, so Score and PredictNext are hash lookups and
may be called from any number of goroutines. Degenerate queries never
fail; a text shorter than the model order scores negative infinity and a
context with too few tokens or no recorded continuation predicts nothing.
*/
package ngram
