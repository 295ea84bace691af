// Package patch applies batches of unified-diff patch files to a working
// directory.
//
// For every patch the package infers the strip level (the number of leading
// path components to drop from the recorded file names) by probing the
// working directory, then hands the patch to a Tool. Tools are pluggable: the
// ExecTool shells out to a `patch` executable, while the NativeTool applies
// hunks in process and can run against an in-memory snapshot for dry runs.
//
// Batches are applied strictly in order and stop at the first failure.
// Patches applied before the failure are left in place.
package patch
