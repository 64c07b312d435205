// Package replacers holds the catalogue of version steps: the call-site
// rules, member insertions, type remaps and structural hooks that lower a
// class by one Java release.
package replacers

import (
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

// Steps returns a fresh copy of every step, newest first.
func Steps() []*rewrite.Step {
	return []*rewrite.Step{
		Java21To20(),
		Java20To19(),
		Java19To18(),
		Java18To17(),
		Java17To16(),
		Java16To15(),
		Java15To14(),
		Java14To13(),
		Java13To12(),
		Java12To11(),
		Java11To10(),
		Java10To9(),
		Java9To8(),
	}
}

func Java21To20() *rewrite.Step {
	s := rewrite.MustStep(cf.V21, cf.V20)
	for _, owner := range []string{listClass, "java/util/ArrayList"} {
		s.Calls.AddDesc(owner, "getFirst", "()Ljava/lang/Object;", rewrite.Inline{Emit: sequencedGetFirst})
		s.Calls.AddDesc(owner, "getLast", "()Ljava/lang/Object;", rewrite.Inline{Emit: sequencedGetLast})
		s.Calls.AddDesc(owner, "removeFirst", "()Ljava/lang/Object;", rewrite.Inline{Emit: sequencedRemoveFirst})
		s.Calls.AddDesc(owner, "removeLast", "()Ljava/lang/Object;", rewrite.Inline{Emit: sequencedRemoveLast})
		s.Calls.AddDesc(owner, "addFirst", "(Ljava/lang/Object;)V", rewrite.Inline{Emit: sequencedAddFirst})
		s.Calls.AddDesc(owner, "addLast", "(Ljava/lang/Object;)V", rewrite.Inline{Emit: sequencedAddLast})
	}
	s.Remaps.Replace("java/lang/MatchException")
	return s
}

func Java20To19() *rewrite.Step {
	return rewrite.MustStep(cf.V20, cf.V19)
}

func Java19To18() *rewrite.Step {
	s := rewrite.MustStep(cf.V19, cf.V18)
	s.Calls.AddDesc("java/lang/Thread", "threadId", "()J", rewrite.Redirect{Name: "getId"})
	for _, f := range []struct{ class, name string }{
		{"java/util/HashMap", "newHashMap"},
		{"java/util/LinkedHashMap", "newLinkedHashMap"},
		{"java/util/WeakHashMap", "newWeakHashMap"},
		{"java/util/HashSet", "newHashSet"},
		{"java/util/LinkedHashSet", "newLinkedHashSet"},
	} {
		s.Calls.AddDesc(f.class, f.name, "(I)L"+f.class+";", sizedNew(f.class))
	}
	return s
}

func Java18To17() *rewrite.Step {
	return rewrite.MustStep(cf.V18, cf.V17)
}

func Java17To16() *rewrite.Step {
	s := rewrite.MustStep(cf.V17, cf.V16)
	for _, owner := range []string{randomClass, "java/security/SecureRandom"} {
		s.Calls.AddDesc(owner, "nextLong", "(J)J", randomNextLong)
	}
	s.Post = append(s.Post, dropPermittedSubclasses)
	return s
}

func Java16To15() *rewrite.Step {
	s := rewrite.MustStep(cf.V16, cf.V15)
	s.Calls.AddDesc("java/util/stream/Stream", "toList", "()Ljava/util/List;", inline(streamToList))
	s.Remaps.RenameOnly(recordClass, "java/lang/Object")
	s.Pre = append(s.Pre, lowerRecords)
	return s
}

func Java15To14() *rewrite.Step {
	s := rewrite.MustStep(cf.V15, cf.V14)
	for _, owner := range []string{charSeq, sbClass, stringBuffer} {
		s.Calls.AddDesc(owner, "isEmpty", "()Z", rewrite.Inline{Emit: charSeqIsEmpty})
	}
	s.Calls.AddDesc(stringClass, "formatted", "([Ljava/lang/Object;)Ljava/lang/String;", stringFormatted)
	return s
}

func Java14To13() *rewrite.Step {
	s := rewrite.MustStep(cf.V14, cf.V13)
	s.Calls.AddDesc("java/io/PrintStream", "writeBytes", "([B)V", rewrite.Inline{Emit: writeBytes})
	return s
}

func Java13To12() *rewrite.Step {
	s := rewrite.MustStep(cf.V13, cf.V12)
	const fsDesc = ")Ljava/nio/file/FileSystem;"
	for _, args := range []string{
		"Ljava/nio/file/Path;",
		"Ljava/nio/file/Path;Ljava/util/Map;",
		"Ljava/nio/file/Path;Ljava/util/Map;Ljava/lang/ClassLoader;",
	} {
		s.Calls.AddDesc("java/nio/file/FileSystems", "newFileSystem", "("+args+fsDesc, fileSystemsNew)
	}
	return s
}

func Java12To11() *rewrite.Step {
	s := rewrite.MustStep(cf.V12, cf.V11)
	s.Calls.Add(future, "exceptionallyAsync", exceptionallyAsync)
	s.Calls.AddDesc("java/lang/Class", "arrayType", "()Ljava/lang/Class;", inline(classArrayType))
	s.Calls.AddDesc("java/lang/Class", "componentType", "()Ljava/lang/Class;", rewrite.Redirect{Name: "getComponentType"})
	s.Calls.AddDesc(stringClass, "transform", "(Ljava/util/function/Function;)Ljava/lang/Object;", inline(stringTransform))
	return s
}

var toArrayOwners = []string{
	"java/util/Collection",
	listClass,
	setClass,
	"java/util/Queue",
	"java/util/Deque",
	"java/util/ArrayList",
	"java/util/LinkedList",
	"java/util/HashSet",
	"java/util/LinkedHashSet",
	"java/util/TreeSet",
	"java/util/ArrayDeque",
}

func Java11To10() *rewrite.Step {
	s := rewrite.MustStep(cf.V11, cf.V10)
	s.Calls.AddDesc(stringClass, "isBlank", "()Z", stringIsBlank)
	s.Calls.AddDesc(stringClass, "repeat", "(I)Ljava/lang/String;", stringRepeat)
	s.Calls.Add(filesClass, "readString", rewrite.Inline{Emit: filesReadString})
	s.Calls.Add(filesClass, "writeString", rewrite.Inline{Emit: filesWriteString})
	for _, k := range optionalKinds {
		s.Calls.AddDesc(k.class, "isEmpty", "()Z", rewrite.Inline{Emit: optionalIsEmpty})
	}
	s.Calls.AddDesc("java/lang/Character", "toString", "(I)Ljava/lang/String;", inline(characterToString))
	s.Calls.AddDesc(inflater, "setInput", "(Ljava/nio/ByteBuffer;)V", inline(inflaterSetInput))
	s.Calls.AddDesc(inflater, "inflate", "(Ljava/nio/ByteBuffer;)I", inline(inflaterInflate))
	for _, owner := range toArrayOwners {
		s.Calls.AddDesc(owner, "toArray", "(Ljava/util/function/IntFunction;)[Ljava/lang/Object;",
			rewrite.Inline{Emit: toArrayGenerator})
	}
	s.Calls.Add(pathClass, "of", pathsGet)
	s.Calls.AddDesc("java/io/ByteArrayOutputStream", "writeBytes", "([B)V", rewrite.Inline{Emit: writeBytes})
	s.Pre = append(s.Pre, flattenNest)
	s.Post = append(s.Post, dropNestMembers)
	return s
}

var readerOwners = []string{
	"java/io/Reader",
	"java/io/BufferedReader",
	"java/io/InputStreamReader",
	"java/io/FileReader",
	"java/io/StringReader",
}

func Java10To9() *rewrite.Step {
	s := rewrite.MustStep(cf.V10, cf.V9)
	s.Calls.AddDesc(listClass, "copyOf", "(Ljava/util/Collection;)Ljava/util/List;",
		copyOf("List", "java/util/ArrayList", "Ljava/util/Collection;"))
	s.Calls.AddDesc(setClass, "copyOf", "(Ljava/util/Collection;)Ljava/util/Set;",
		copyOf("Set", "java/util/HashSet", "Ljava/util/Collection;"))
	s.Calls.AddDesc(mapClass, "copyOf", "(Ljava/util/Map;)Ljava/util/Map;",
		copyOf("Map", "java/util/HashMap", "Ljava/util/Map;"))

	const fn = "Ljava/util/function/Function;"
	s.Calls.AddDesc(collectors, "toUnmodifiableList", "()"+collectorDesc,
		toUnmodifiable("List", "toList", "()"+collectorDesc))
	s.Calls.AddDesc(collectors, "toUnmodifiableSet", "()"+collectorDesc,
		toUnmodifiable("Set", "toSet", "()"+collectorDesc))
	s.Calls.AddDesc(collectors, "toUnmodifiableMap", "("+fn+fn+")"+collectorDesc,
		toUnmodifiable("Map", "toMap", "("+fn+fn+")"+collectorDesc))
	s.Calls.AddDesc(collectors, "toUnmodifiableMap", "("+fn+fn+"Ljava/util/function/BinaryOperator;)"+collectorDesc,
		toUnmodifiable("Map", "toMap", "("+fn+fn+"Ljava/util/function/BinaryOperator;)"+collectorDesc))

	for _, owner := range readerOwners {
		s.Calls.AddDesc(owner, "transferTo", "(Ljava/io/Writer;)J", readerTransferTo)
	}
	for _, k := range optionalKinds {
		s.Calls.AddDesc(k.class, "orElseThrow", "()"+k.value.Descriptor(), k.orElseThrow())
	}
	return s
}

var inputStreamOwners = []string{
	"java/io/InputStream",
	"java/io/FileInputStream",
	"java/io/BufferedInputStream",
	"java/io/ByteArrayInputStream",
	"java/io/DataInputStream",
	"java/io/FilterInputStream",
	"java/io/ObjectInputStream",
}

func Java9To8() *rewrite.Step {
	s := rewrite.MustStep(cf.V9, cf.V1_8)
	s.Calls.Add(listClass, "of", rewrite.Inline{Emit: listOf})
	s.Calls.Add(setClass, "of", rewrite.Inline{Emit: setOf})
	s.Calls.Add(mapClass, "of", rewrite.Inline{Emit: mapOf})
	s.Calls.AddDesc(mapClass, "entry", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/util/Map$Entry;", inline(mapEntry))
	s.Calls.AddDesc(mapClass, "ofEntries", "([Ljava/util/Map$Entry;)Ljava/util/Map;", mapOfEntries)

	for _, owner := range inputStreamOwners {
		s.Calls.AddDesc(owner, "transferTo", "(Ljava/io/OutputStream;)J", inputTransferTo)
		s.Calls.AddDesc(owner, "readAllBytes", "()[B", inputReadAllBytes)
	}

	s.Calls.AddDesc(objects, "requireNonNullElse", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", requireNonNullElse)
	s.Calls.AddDesc(objects, "requireNonNullElseGet", "(Ljava/lang/Object;Ljava/util/function/Supplier;)Ljava/lang/Object;", requireNonNullElseGet)
	s.Calls.AddDesc(objects, "checkIndex", "(II)I", checkIndex)

	addBufferRules(s.Calls)
	addOptionalRules(s.Calls)

	s.Calls.AddDesc(matcher, "appendReplacement", "(Ljava/lang/StringBuilder;Ljava/lang/String;)Ljava/util/regex/Matcher;",
		rewrite.Inline{Emit: matcherAppendReplacement})
	s.Calls.AddDesc(matcher, "appendTail", "(Ljava/lang/StringBuilder;)Ljava/lang/StringBuilder;",
		rewrite.Inline{Emit: matcherAppendTail})

	const runtimeShim = rewrite.RuntimePackage + "java/lang/Runtime"
	s.Calls.AddDesc("java/lang/Runtime", "version", "()Ljava/lang/Runtime$Version;", rewrite.Redirect{
		Owner: runtimeShim,
		Deps:  []string{runtimeShim},
	})
	s.Remaps.ReplaceWith("java/lang/Runtime$Version", rewrite.RuntimePackage+"java/lang/Runtime$Version", runtimeShim)

	const parse = "(Ljava/lang/CharSequence;III)"
	s.Calls.AddDesc("java/lang/Integer", "parseInt", parse+"I", rewrite.Inline{Emit: parseRange})
	s.Calls.AddDesc("java/lang/Integer", "parseUnsignedInt", parse+"I", rewrite.Inline{Emit: parseRange})
	s.Calls.AddDesc("java/lang/Long", "parseLong", parse+"J", rewrite.Inline{Emit: parseRange})
	s.Calls.AddDesc("java/lang/Long", "parseUnsignedLong", parse+"J", rewrite.Inline{Emit: parseRange})

	s.Remaps.Replace("java/lang/StackWalker")
	s.Remaps.Replace("java/lang/StackWalker$Option")
	s.Remaps.Replace("java/lang/StackWalker$StackFrame")

	s.Members = append(s.Members,
		pathStringMember("startsWith", "Z"),
		pathStringMember("endsWith", "Z"),
		pathStringMember("resolve", "Ljava/nio/file/Path;"),
		pathToFile,
	)
	s.Pre = append(s.Pre, lowerStringConcat, publishInterfaceMethods)
	return s
}
