package apkbuild_test

import (
	"fmt"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/deps/apkbuild"
)

func ExampleParse() {
	text := `pkgname=zlib
pkgver=1.3.1
pkgrel=0
depends=""
makedepends="cmake"
subpackages="$pkgname-dev $pkgname-static"

dev() {
	depends="$pkgname=$pkgver-r$pkgrel"
}
`
	pkgs, err := apkbuild.Parse(text, apkbuild.Context{Path: "aports/main/zlib/APKBUILD"})
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, p := range pkgs {
		fmt.Println(p.Name, p.Repository, p.Deps(deps.KindRuntime), p.Deps(deps.KindBuild))
	}
	// Output:
	// zlib main [] [cmake]
	// zlib-dev main [zlib=1.3.1-r0] [cmake]
	// zlib-static main [] [cmake]
}

func ExampleScope_Expand() {
	scope := apkbuild.NewScope(map[string]string{"pkgname": "py3-requests", "pkgver": "2.31.0"})

	fmt.Println(scope.Expand("${pkgname#py3-}"))
	fmt.Println(scope.Expand("${pkgver%.*}"))
	fmt.Println(scope.Expand("$pkgname-doc"))
	// Output:
	// requests
	// 2.31
	// py3-requests-doc
}
