package patch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const mixedPatch = `diff --git a/src/main.c b/src/main.c
--- a/src/main.c
+++ b/src/main.c
@@ -2,3 +2,3 @@ int main(void)
 {
-	return 1;
+	return 0;
 }
diff --git a/fresh.txt b/fresh.txt
new file mode 100644
--- /dev/null
+++ b/fresh.txt
@@ -0,0 +1,2 @@
+hello
+world
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
--- a/gone.txt
+++ /dev/null
@@ -1,1 +0,0 @@
-bye
diff --git a/old.txt b/new.txt
--- a/old.txt
+++ b/new.txt
@@ -1,1 +1,1 @@
-x
+y
`

func TestParseUnifiedClassifiesOperations(t *testing.T) {
	t.Parallel()

	ops, err := ParseUnified([]byte(mixedPatch), 1)
	require.NoError(t, err)
	require.Len(t, ops, 4)

	update := ops[0]
	require.Equal(t, OperationUpdate, update.Type)
	require.Equal(t, "src/main.c", update.Path)
	require.Empty(t, update.MovePath)
	require.Len(t, update.Hunks, 1)
	require.Equal(t, 2, update.Hunks[0].OrigStart)
	require.Equal(t, []string{"{", "\treturn 1;", "}"}, update.Hunks[0].Before)
	require.Equal(t, []string{"{", "\treturn 0;", "}"}, update.Hunks[0].After)
	require.Equal(t, "@@ -2,3 +2,3 @@ int main(void)", update.Hunks[0].RawPatchLines[0])

	add := ops[1]
	require.Equal(t, OperationAdd, add.Type)
	require.Equal(t, "fresh.txt", add.Path)
	require.Equal(t, []string{"hello", "world", ""}, add.Hunks[0].After)

	del := ops[2]
	require.Equal(t, OperationDelete, del.Type)
	require.Equal(t, "gone.txt", del.Path)

	rename := ops[3]
	require.Equal(t, OperationUpdate, rename.Type)
	require.Equal(t, "old.txt", rename.Path)
	require.Equal(t, "new.txt", rename.MovePath)
}

func TestParseUnifiedRejectsExcessiveStrip(t *testing.T) {
	t.Parallel()

	_, err := ParseUnified([]byte(prefixedPatch), 3)
	require.Error(t, err)
}

func TestParseUnifiedRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseUnified([]byte("nothing to see here\n"), 1)
	require.Error(t, err)
}

func TestUnifiedHeaderParserKeepsPrefixes(t *testing.T) {
	t.Parallel()

	paths, err := UnifiedHeaderParser{}.OldPaths([]byte(mixedPatch))
	require.NoError(t, err)
	require.Equal(t, []string{"a/src/main.c", "/dev/null", "a/gone.txt", "a/old.txt"}, paths)
}
