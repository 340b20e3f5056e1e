// recpipe 训练推荐模型、生成推荐并同步产物。
package main

func main() {
	Execute()
}
