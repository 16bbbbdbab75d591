package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/calc.py b/calc.py
index 83db48f..bf269f4 100644
--- a/calc.py
+++ b/calc.py
@@ -3,0 +4,2 @@ class Calculator:
+    def reset(self):
+        self.total = 0
@@ -10 +12 @@ def add(self, x):
-        return x
+        return self.total
@@ -20,3 +22,0 @@ def main():
-    pass
-    pass
-    pass
diff --git a/old.py b/old.py
deleted file mode 100644
index 1111111..0000000
--- a/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-x = 1
-y = 2
diff --git a/pkg/util.py b/pkg/util.py
index 2222222..3333333 100644
--- a/pkg/util.py
+++ b/pkg/util.py
@@ -1 +1 @@
-import os
+import sys
`

func TestParseDiff(t *testing.T) {
	changes, err := ParseDiff([]byte(sampleDiff))
	require.NoError(t, err)
	require.Len(t, changes, 2, "deleted files are dropped")

	assert.Equal(t, "calc.py", changes[0].Path)
	assert.Equal(t, []int{4, 5, 12, 22}, changes[0].ChangedLines)
	assert.Equal(t, "pkg/util.py", changes[1].Path)
	assert.Equal(t, []int{1}, changes[1].ChangedLines)
}

func TestParseDiff_Empty(t *testing.T) {
	changes, err := ParseDiff(nil)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
